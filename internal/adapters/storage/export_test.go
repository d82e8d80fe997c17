package storage

import "github.com/alejandrodnm/accapool/internal/ports"

// Rebind expone el reescritor de placeholders a los tests externos.
func Rebind(driver Driver, query string) string { return rebind(driver, query) }

// LockClause expone el sufijo de bloqueo por dialecto.
func LockClause(driver Driver, mode ports.LockMode) string { return lockClause(driver, mode) }

// SQLiteDSN expone el DSN con pragmas.
func SQLiteDSN(dsn string) string { return sqliteDSN(dsn) }
