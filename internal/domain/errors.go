package domain

import "errors"

// Errores tipados del motor de pools. Se envuelven con fmt.Errorf("...: %w")
// y los callers los distinguen con errors.Is.
var (
	// ErrPhaseViolation: operación fuera de la fase requerida (o CAS de fase perdido).
	ErrPhaseViolation = errors.New("phase violation")
	// ErrIncompleteSubmission: el número de legs válidos no coincide con el cupo.
	ErrIncompleteSubmission = errors.New("incomplete submission")
	// ErrSelfVoteRejected: un participante intentó votar su propia submission.
	ErrSelfVoteRejected = errors.New("self vote rejected")
	// ErrInsufficientSubmissions: no hay suficientes legs para la transición.
	ErrInsufficientSubmissions = errors.New("insufficient submissions")
	// ErrInvariantViolation: precondición rota en otra parte del sistema. Nunca esperado.
	ErrInvariantViolation = errors.New("invariant violation")

	ErrPoolNotFound       = errors.New("pool not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrInvalidOutcome     = errors.New("invalid outcome")
	ErrInvalidPool        = errors.New("invalid pool")
)
