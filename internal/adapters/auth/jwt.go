package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles reconocidos en el claim "role".
const (
	RoleParticipant = "participant"
	RoleOperator    = "operator"
)

// ErrInvalidToken agrupa cualquier fallo de validación del token.
var ErrInvalidToken = errors.New("auth: invalid token")

// Claims son los claims del token. Subject es el ID del participante.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// ParticipantID devuelve el participante autenticado.
func (c *Claims) ParticipantID() string {
	return c.Subject
}

// IsOperator indica si el token puede crear, borrar y hacer avanzar pools.
func (c *Claims) IsOperator() bool {
	return c.Role == RoleOperator
}

// Issuer firma y valida tokens HS256.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer crea un Issuer. ttl <= 0 usa 24h.
func NewIssuer(secret, issuer string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("auth.NewIssuer: JWT secret not configured")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// Issue firma un token para el participante con el rol dado.
func (i *Issuer) Issue(participantID, role string) (string, error) {
	if participantID == "" {
		return "", fmt.Errorf("auth.Issue: participant id required")
	}
	if role == "" {
		role = RoleParticipant
	}
	now := i.now()
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   participantID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("auth.Issue: sign token: %w", err)
	}
	return signed, nil
}

// Validate verifica firma, expiración y subject, y devuelve los claims.
func (i *Issuer) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{jwt.WithTimeFunc(i.now)}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}
