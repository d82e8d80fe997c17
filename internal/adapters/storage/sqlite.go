package storage

// sqlite.go: apertura de la DB, schema y dialectos.
//
// Estrategia:
//   - Tres relaciones durables: `pools`, `submissions`, `votes` (+ `activity_log`).
//   - `votes` tiene PK (submission_id, participant_id): como mucho un voto por par,
//     garantizado por la DB, no por la aplicación.
//   - `submissions.vote_count` es un contador desnormalizado que solo se toca con
//     UPDATE ... SET vote_count = vote_count ± 1 en la misma tx que el voto.
//   - Dos dialectos con el mismo SQL: SQLite (pure Go, por defecto) y PostgreSQL.
//     Las queries se escriben con `?` y se reescriben a `$n` para Postgres.
//   - Importes como TEXT decimal (shopspring/decimal), timestamps como TEXT UTC de ancho fijo.

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/accapool/internal/ports"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Driver identifica el dialecto SQL.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS pools (
    id                     TEXT PRIMARY KEY,
    season_id              TEXT    NOT NULL DEFAULT '',
    title                  TEXT    NOT NULL,
    buyin_per_participant  TEXT    NOT NULL,
    legs_per_participant   INTEGER NOT NULL CHECK (legs_per_participant > 0),
    winning_legs_count     INTEGER NOT NULL CHECK (winning_legs_count > 0),
    submission_deadline    TEXT,
    voting_deadline        TEXT,
    phase                  TEXT    NOT NULL DEFAULT 'collecting_submissions'
        CHECK (phase IN ('collecting_submissions', 'voting', 'placed', 'settled')),
    outcome                TEXT    NOT NULL DEFAULT 'unresolved'
        CHECK (outcome IN ('unresolved', 'won', 'lost')),
    combined_odds          DOUBLE PRECISION,
    total_stake            TEXT,
    payout_per_participant TEXT,
    submission_seq         BIGINT  NOT NULL DEFAULT 0,
    created_at             TEXT    NOT NULL,
    updated_at             TEXT    NOT NULL,
    placed_at              TEXT,
    settled_at             TEXT
);

CREATE TABLE IF NOT EXISTS submissions (
    id              TEXT PRIMARY KEY,
    pool_id         TEXT    NOT NULL REFERENCES pools(id) ON DELETE CASCADE,
    participant_id  TEXT    NOT NULL,
    leg_index       INTEGER NOT NULL,
    seq             BIGINT  NOT NULL,
    selection_text  TEXT    NOT NULL,
    event_label     TEXT    NOT NULL DEFAULT '',
    odds_decimal    DOUBLE PRECISION NOT NULL,
    odds_fractional TEXT    NOT NULL,
    vote_count      INTEGER NOT NULL DEFAULT 0 CHECK (vote_count >= 0),
    is_winning_leg  BOOLEAN NOT NULL DEFAULT FALSE,
    result          TEXT    NOT NULL DEFAULT 'pending'
        CHECK (result IN ('pending', 'won', 'lost', 'void')),
    created_at      TEXT    NOT NULL,
    UNIQUE (pool_id, participant_id, leg_index)
);

-- Un voto por (submission, participante): la invariante central del tally
CREATE TABLE IF NOT EXISTS votes (
    submission_id  TEXT NOT NULL REFERENCES submissions(id) ON DELETE CASCADE,
    participant_id TEXT NOT NULL,
    pool_id        TEXT NOT NULL REFERENCES pools(id) ON DELETE CASCADE,
    created_at     TEXT NOT NULL,
    PRIMARY KEY (submission_id, participant_id)
);

-- Sin FK: el feed conserva la actividad de pools borrados
CREATE TABLE IF NOT EXISTS activity_log (
    id             TEXT PRIMARY KEY,
    pool_id        TEXT NOT NULL,
    season_id      TEXT NOT NULL DEFAULT '',
    participant_id TEXT NOT NULL DEFAULT '',
    event_type     TEXT NOT NULL,
    data           TEXT NOT NULL DEFAULT '{}',
    occurred_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pools_season      ON pools(season_id);
CREATE INDEX IF NOT EXISTS idx_subs_pool_rank    ON submissions(pool_id, vote_count DESC, seq);
CREATE INDEX IF NOT EXISTS idx_subs_participant  ON submissions(pool_id, participant_id);
CREATE INDEX IF NOT EXISTS idx_votes_participant ON votes(pool_id, participant_id);
CREATE INDEX IF NOT EXISTS idx_activity_pool     ON activity_log(pool_id, occurred_at DESC);
`

// SQLStorage implementa ports.PoolStore y ports.ActivityLog sobre database/sql.
type SQLStorage struct {
	db     *sql.DB
	driver Driver
	now    func() time.Time
}

// NewSQLiteStorage abre (o crea) la base SQLite en la ruta dada. ":memory:" para tests.
func NewSQLiteStorage(path string) (*SQLStorage, error) {
	return Open(context.Background(), DriverSQLite, path)
}

// Open abre la DB con el driver indicado y aplica el schema.
func Open(ctx context.Context, driver Driver, dsn string) (*SQLStorage, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("storage.Open: unsupported driver %q", driver)
	}

	if driver == DriverSQLite {
		dsn = sqliteDSN(dsn)
	}
	db, err := sql.Open(string(driver), dsn)
	if err != nil {
		return nil, fmt.Errorf("storage.Open: open %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		db.SetMaxOpenConns(1) // SQLite es single-writer; además ":memory:" es por conexión
		db.SetMaxIdleConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.Open: ping: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.Open: apply schema: %w", err)
	}

	return &SQLStorage{
		db:     db,
		driver: driver,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close cierra la conexión a la base de datos.
func (s *SQLStorage) Close() error {
	return s.db.Close()
}

// DB expone la conexión (tests y diagnósticos).
func (s *SQLStorage) DB() *sql.DB {
	return s.db
}

// --- helpers internos ---

// rebind reescribe los placeholders `?` a `$n` cuando el dialecto es Postgres.
func (s *SQLStorage) rebind(query string) string {
	return rebind(s.driver, query)
}

func rebind(driver Driver, query string) string {
	if driver != DriverPostgres {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// lockClause devuelve el sufijo de bloqueo de fila. SQLite ya serializa las tx.
func lockClause(driver Driver, mode ports.LockMode) string {
	if driver != DriverPostgres {
		return ""
	}
	switch mode {
	case ports.LockExclusive:
		return " FOR UPDATE"
	case ports.LockShared:
		return " FOR SHARE"
	}
	return ""
}

// sqlitePragmas van en el DSN: modernc los aplica a cada conexión que abre
// database/sql, no solo a la primera.
var sqlitePragmas = []struct{ name, value string }{
	{"foreign_keys", "1"},
	{"busy_timeout", "5000"},
}

// sqliteDSN añade a dsn los pragmas que no traiga ya.
func sqliteDSN(dsn string) string {
	var sb strings.Builder
	sb.WriteString(dsn)
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	for _, p := range sqlitePragmas {
		if strings.Contains(dsn, "_pragma="+p.name+"(") {
			continue
		}
		sb.WriteString(sep + "_pragma=" + p.name + "(" + p.value + ")")
		sep = "&"
	}
	return sb.String()
}

// placeholders devuelve "?, ?, ?" con n elementos.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// timeLayout es de ancho fijo para que ORDER BY sobre TEXT respete el orden temporal.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}
