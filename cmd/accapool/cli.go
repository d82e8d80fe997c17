package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/accapool/config"
	"github.com/alejandrodnm/accapool/internal/adapters/auth"
	"github.com/alejandrodnm/accapool/internal/adapters/notify"
	"github.com/alejandrodnm/accapool/internal/application/pool"
)

func runIssueToken(cfg *config.Config, participantID string, operator bool) error {
	issuer, err := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.TokenTTL())
	if err != nil {
		return fmt.Errorf("set up auth: %w", err)
	}

	role := auth.RoleParticipant
	if operator {
		role = auth.RoleOperator
	}
	tok, err := issuer.Issue(participantID, role)
	if err != nil {
		return fmt.Errorf("issue token for %s: %w", participantID, err)
	}
	fmt.Println(tok)
	return nil
}

func runList(ctx context.Context, svc *pool.Service, console *notify.Console, season string) error {
	pools, err := svc.ListPools(ctx, season)
	if err != nil {
		return fmt.Errorf("list pools: %w", err)
	}
	if len(pools) == 0 {
		slog.Info("no pools found", "season", season)
		return nil
	}
	console.PrintPools(pools)
	return nil
}

func runBoard(ctx context.Context, svc *pool.Service, console *notify.Console, poolID string) error {
	b, err := svc.GetBoard(ctx, poolID, "")
	if err != nil {
		return fmt.Errorf("get board %s: %w", poolID, err)
	}
	console.PrintBoard(b)
	return nil
}
