package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alejandrodnm/accapool/internal/domain"
	"github.com/alejandrodnm/accapool/internal/ports"
	"github.com/shopspring/decimal"
)

// querier es lo común entre *sql.DB y *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

const poolColumns = `id, season_id, title, buyin_per_participant, legs_per_participant,
	winning_legs_count, submission_deadline, voting_deadline, phase, outcome,
	combined_odds, total_stake, payout_per_participant, created_at, updated_at,
	placed_at, settled_at`

const submissionColumns = `id, pool_id, participant_id, leg_index, seq, selection_text,
	event_label, odds_decimal, odds_fractional, vote_count, is_winning_leg, result, created_at`

// CreatePool inserta un pool nuevo en fase de recogida.
func (s *SQLStorage) CreatePool(ctx context.Context, p domain.Pool) error {
	now := s.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO pools (id, season_id, title, buyin_per_participant, legs_per_participant,
		                   winning_legs_count, submission_deadline, voting_deadline, phase,
		                   outcome, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		p.ID, p.SeasonID, p.Title, p.BuyinPerParticipant.String(), p.LegsPerParticipant,
		p.WinningLegsCount, nullTime(p.SubmissionDeadline), nullTime(p.VotingDeadline),
		string(domain.PhaseCollecting), string(domain.OutcomeUnresolved),
		formatTime(p.CreatedAt), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("storage.CreatePool: %w", err)
	}
	return nil
}

// GetPool devuelve un pool por ID.
func (s *SQLStorage) GetPool(ctx context.Context, poolID string) (domain.Pool, error) {
	return getPool(ctx, s.db, s.driver, poolID, ports.LockNone)
}

// ListPools devuelve los pools de una temporada (todas si seasonID es ""), más nuevos primero.
func (s *SQLStorage) ListPools(ctx context.Context, seasonID string) ([]domain.Pool, error) {
	query := `SELECT ` + poolColumns + ` FROM pools`
	var args []any
	if seasonID != "" {
		query += ` WHERE season_id = ?`
		args = append(args, seasonID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("storage.ListPools: query: %w", err)
	}
	defer rows.Close()

	var pools []domain.Pool
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.ListPools: %w", err)
		}
		pools = append(pools, p)
	}
	return pools, rows.Err()
}

// DeletePool borra el pool; submissions y votos caen por ON DELETE CASCADE.
func (s *SQLStorage) DeletePool(ctx context.Context, poolID string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM pools WHERE id = ?`), poolID)
	if err != nil {
		return fmt.Errorf("storage.DeletePool: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("storage.DeletePool: %s: %w", poolID, domain.ErrPoolNotFound)
	}
	return nil
}

// ListSubmissions devuelve las submissions del pool ordenadas por ranking.
func (s *SQLStorage) ListSubmissions(ctx context.Context, poolID string) ([]domain.Submission, error) {
	return listSubmissions(ctx, s.db, s.driver, poolID)
}

// VotedSubmissions devuelve el set de submissions votadas por el participante.
func (s *SQLStorage) VotedSubmissions(ctx context.Context, poolID, participantID string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT submission_id FROM votes WHERE pool_id = ? AND participant_id = ?`),
		poolID, participantID)
	if err != nil {
		return nil, fmt.Errorf("storage.VotedSubmissions: query: %w", err)
	}
	defer rows.Close()

	voted := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("storage.VotedSubmissions: scan: %w", err)
		}
		voted[id] = true
	}
	return voted, rows.Err()
}

// WithinTx ejecuta fn en una transacción: commit si fn devuelve nil, rollback si no.
func (s *SQLStorage) WithinTx(ctx context.Context, fn func(tx ports.PoolTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.WithinTx: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqlTx{tx: tx, driver: s.driver, now: s.now()}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.WithinTx: commit: %w", err)
	}
	return nil
}

// sqlTx implementa ports.PoolTx sobre una *sql.Tx.
type sqlTx struct {
	tx     *sql.Tx
	driver Driver
	now    time.Time
}

func (t *sqlTx) rebind(q string) string { return rebind(t.driver, q) }

func (t *sqlTx) stamp() string { return formatTime(t.now) }

func (t *sqlTx) GetPool(ctx context.Context, poolID string, lock ports.LockMode) (domain.Pool, error) {
	return getPool(ctx, t.tx, t.driver, poolID, lock)
}

func (t *sqlTx) ListSubmissions(ctx context.Context, poolID string) ([]domain.Submission, error) {
	return listSubmissions(ctx, t.tx, t.driver, poolID)
}

func (t *sqlTx) GetSubmission(ctx context.Context, submissionID string) (domain.Submission, error) {
	row := t.tx.QueryRowContext(ctx, t.rebind(`SELECT `+submissionColumns+` FROM submissions WHERE id = ?`), submissionID)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Submission{}, fmt.Errorf("storage.GetSubmission: %s: %w", submissionID, domain.ErrSubmissionNotFound)
	}
	if err != nil {
		return domain.Submission{}, fmt.Errorf("storage.GetSubmission: %w", err)
	}
	return sub, nil
}

func (t *sqlTx) CountSubmissions(ctx context.Context, poolID string) (int, error) {
	var n int
	if err := t.tx.QueryRowContext(ctx, t.rebind(`SELECT COUNT(*) FROM submissions WHERE pool_id = ?`), poolID).Scan(&n); err != nil {
		return 0, fmt.Errorf("storage.CountSubmissions: %w", err)
	}
	return n, nil
}

// ReplaceSubmissions hace delete+insert en la misma tx: o queda el set nuevo completo,
// o queda el anterior. Los Seq salen del contador del pool (orden de llegada).
func (t *sqlTx) ReplaceSubmissions(ctx context.Context, poolID, participantID string, subs []domain.Submission) (int, error) {
	res, err := t.tx.ExecContext(ctx, t.rebind(`
		DELETE FROM submissions WHERE pool_id = ? AND participant_id = ?`),
		poolID, participantID)
	if err != nil {
		return 0, fmt.Errorf("storage.ReplaceSubmissions: delete: %w", err)
	}
	deleted, _ := res.RowsAffected()

	var lastSeq int64
	if err := t.tx.QueryRowContext(ctx, t.rebind(`
		UPDATE pools SET submission_seq = submission_seq + ?, updated_at = ?
		WHERE id = ?
		RETURNING submission_seq`),
		len(subs), t.stamp(), poolID,
	).Scan(&lastSeq); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("storage.ReplaceSubmissions: %s: %w", poolID, domain.ErrPoolNotFound)
		}
		return 0, fmt.Errorf("storage.ReplaceSubmissions: reserve seq: %w", err)
	}
	firstSeq := lastSeq - int64(len(subs)) + 1

	stmt, err := t.tx.PrepareContext(ctx, t.rebind(`
		INSERT INTO submissions (`+submissionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return 0, fmt.Errorf("storage.ReplaceSubmissions: prepare: %w", err)
	}
	defer stmt.Close()

	for i := range subs {
		sub := &subs[i]
		sub.PoolID = poolID
		sub.ParticipantID = participantID
		sub.Seq = firstSeq + int64(i)
		if sub.Result == "" {
			sub.Result = domain.LegPending
		}
		if _, err := stmt.ExecContext(ctx,
			sub.ID, poolID, participantID, sub.LegIndex, sub.Seq, sub.SelectionText,
			sub.EventLabel, sub.OddsDecimal, sub.OddsFractional, 0, false,
			string(sub.Result), formatTime(sub.CreatedAt),
		); err != nil {
			return 0, fmt.Errorf("storage.ReplaceSubmissions: insert leg %d: %w", sub.LegIndex, err)
		}
	}
	return int(deleted), nil
}

func (t *sqlTx) InsertVote(ctx context.Context, v domain.Vote) (bool, error) {
	res, err := t.tx.ExecContext(ctx, t.rebind(`
		INSERT INTO votes (submission_id, participant_id, pool_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (submission_id, participant_id) DO NOTHING`),
		v.SubmissionID, v.ParticipantID, v.PoolID, formatTime(v.CreatedAt))
	if err != nil {
		return false, fmt.Errorf("storage.InsertVote: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("storage.InsertVote: rows affected: %w", err)
	}
	return n == 1, nil
}

func (t *sqlTx) DeleteVote(ctx context.Context, submissionID, participantID string) (bool, error) {
	res, err := t.tx.ExecContext(ctx, t.rebind(`
		DELETE FROM votes WHERE submission_id = ? AND participant_id = ?`),
		submissionID, participantID)
	if err != nil {
		return false, fmt.Errorf("storage.DeleteVote: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("storage.DeleteVote: rows affected: %w", err)
	}
	return n == 1, nil
}

// AdjustVoteCount es el primitivo de contador: la suma la hace la DB, nunca Go.
func (t *sqlTx) AdjustVoteCount(ctx context.Context, submissionID string, delta int) (int, error) {
	var count int
	err := t.tx.QueryRowContext(ctx, t.rebind(`
		UPDATE submissions SET vote_count = vote_count + ?
		WHERE id = ?
		RETURNING vote_count`),
		delta, submissionID,
	).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("storage.AdjustVoteCount: %s: %w", submissionID, domain.ErrSubmissionNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("storage.AdjustVoteCount: %w", err)
	}
	return count, nil
}

// CompareAndSetPhase solo actualiza si la fase guardada sigue siendo from.
func (t *sqlTx) CompareAndSetPhase(ctx context.Context, poolID string, from domain.Phase, u ports.PhaseUpdate) error {
	sets := []string{"phase = ?", "updated_at = ?"}
	args := []any{string(u.To), t.stamp()}

	if u.Outcome != nil {
		sets = append(sets, "outcome = ?")
		args = append(args, string(*u.Outcome))
	}
	if u.CombinedOdds != nil {
		sets = append(sets, "combined_odds = ?")
		args = append(args, *u.CombinedOdds)
	}
	if u.TotalStake != nil {
		sets = append(sets, "total_stake = ?")
		args = append(args, u.TotalStake.String())
	}
	if u.PayoutPerParticipant != nil {
		sets = append(sets, "payout_per_participant = ?")
		args = append(args, u.PayoutPerParticipant.String())
	}
	switch u.To {
	case domain.PhasePlaced:
		sets = append(sets, "placed_at = ?")
		args = append(args, t.stamp())
	case domain.PhaseSettled:
		sets = append(sets, "settled_at = ?")
		args = append(args, t.stamp())
	}
	args = append(args, poolID, string(from))

	res, err := t.tx.ExecContext(ctx, t.rebind(
		`UPDATE pools SET `+strings.Join(sets, ", ")+` WHERE id = ? AND phase = ?`), args...)
	if err != nil {
		return fmt.Errorf("storage.CompareAndSetPhase: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("storage.CompareAndSetPhase: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("storage.CompareAndSetPhase: %s no longer in %s: %w", poolID, from, domain.ErrPhaseViolation)
	}
	return nil
}

func (t *sqlTx) MarkWinningLegs(ctx context.Context, poolID string, submissionIDs []string) error {
	if len(submissionIDs) == 0 {
		return nil
	}
	args := []any{true, poolID}
	for _, id := range submissionIDs {
		args = append(args, id)
	}
	res, err := t.tx.ExecContext(ctx, t.rebind(`
		UPDATE submissions SET is_winning_leg = ?
		WHERE pool_id = ? AND id IN (`+placeholders(len(submissionIDs))+`)`), args...)
	if err != nil {
		return fmt.Errorf("storage.MarkWinningLegs: %w", err)
	}
	if n, _ := res.RowsAffected(); int(n) != len(submissionIDs) {
		return fmt.Errorf("storage.MarkWinningLegs: %w: marked %d of %d legs",
			domain.ErrInvariantViolation, n, len(submissionIDs))
	}
	return nil
}

func (t *sqlTx) SetWinningLegResults(ctx context.Context, poolID string, result domain.LegResult) error {
	if _, err := t.tx.ExecContext(ctx, t.rebind(`
		UPDATE submissions SET result = ? WHERE pool_id = ? AND is_winning_leg = ?`),
		string(result), poolID, true); err != nil {
		return fmt.Errorf("storage.SetWinningLegResults: %w", err)
	}
	return nil
}

// --- lecturas compartidas entre DB y Tx ---

func getPool(ctx context.Context, q querier, driver Driver, poolID string, lock ports.LockMode) (domain.Pool, error) {
	row := q.QueryRowContext(ctx, rebind(driver,
		`SELECT `+poolColumns+` FROM pools WHERE id = ?`+lockClause(driver, lock)), poolID)
	p, err := scanPool(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Pool{}, fmt.Errorf("storage.GetPool: %s: %w", poolID, domain.ErrPoolNotFound)
	}
	if err != nil {
		return domain.Pool{}, fmt.Errorf("storage.GetPool: %w", err)
	}
	return p, nil
}

func listSubmissions(ctx context.Context, q querier, driver Driver, poolID string) ([]domain.Submission, error) {
	rows, err := q.QueryContext(ctx, rebind(driver, `
		SELECT `+submissionColumns+` FROM submissions
		WHERE pool_id = ?
		ORDER BY vote_count DESC, seq ASC`), poolID)
	if err != nil {
		return nil, fmt.Errorf("storage.ListSubmissions: query: %w", err)
	}
	defer rows.Close()

	var subs []domain.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.ListSubmissions: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// scanPool valida fase/outcome al cruzar el borde de la DB.
func scanPool(r rowScanner) (domain.Pool, error) {
	var (
		p                       domain.Pool
		buyin, phase, outcome   string
		createdAt, updatedAt    string
		subDeadline, voteDeadln sql.NullString
		placedAt, settledAt     sql.NullString
		combined                sql.NullFloat64
		totalStake, payout      decimal.NullDecimal
	)
	if err := r.Scan(
		&p.ID, &p.SeasonID, &p.Title, &buyin, &p.LegsPerParticipant,
		&p.WinningLegsCount, &subDeadline, &voteDeadln, &phase, &outcome,
		&combined, &totalStake, &payout, &createdAt, &updatedAt,
		&placedAt, &settledAt,
	); err != nil {
		return domain.Pool{}, err
	}

	var err error
	if p.BuyinPerParticipant, err = decimal.NewFromString(buyin); err != nil {
		return domain.Pool{}, fmt.Errorf("scan pool %s: buy-in: %w", p.ID, err)
	}
	if p.Phase, err = domain.ParsePhase(phase); err != nil {
		return domain.Pool{}, fmt.Errorf("scan pool %s: %w", p.ID, err)
	}
	if p.Outcome, err = domain.ParseOutcome(outcome); err != nil {
		return domain.Pool{}, fmt.Errorf("scan pool %s: %w", p.ID, err)
	}
	if combined.Valid {
		v := combined.Float64
		p.CombinedOdds = &v
	}
	if totalStake.Valid {
		v := totalStake.Decimal
		p.TotalStake = &v
	}
	if payout.Valid {
		v := payout.Decimal
		p.PayoutPerParticipant = &v
	}
	if t := parseNullTime(subDeadline); t != nil {
		p.SubmissionDeadline = *t
	}
	if t := parseNullTime(voteDeadln); t != nil {
		p.VotingDeadline = *t
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	p.PlacedAt = parseNullTime(placedAt)
	p.SettledAt = parseNullTime(settledAt)
	return p, nil
}

func scanSubmission(r rowScanner) (domain.Submission, error) {
	var (
		s                 domain.Submission
		result, createdAt string
	)
	if err := r.Scan(
		&s.ID, &s.PoolID, &s.ParticipantID, &s.LegIndex, &s.Seq, &s.SelectionText,
		&s.EventLabel, &s.OddsDecimal, &s.OddsFractional, &s.VoteCount, &s.IsWinningLeg,
		&result, &createdAt,
	); err != nil {
		return domain.Submission{}, err
	}
	var err error
	if s.Result, err = domain.ParseLegResult(result); err != nil {
		return domain.Submission{}, fmt.Errorf("scan submission %s: %w", s.ID, err)
	}
	s.CreatedAt = parseTime(createdAt)
	return s, nil
}
