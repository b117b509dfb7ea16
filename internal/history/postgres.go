package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the SQL DDL for the practice_attempts table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS practice_attempts (
    id            TEXT PRIMARY KEY,
    user_id       TEXT NOT NULL DEFAULT '',
    mode          TEXT NOT NULL DEFAULT 'read',
    expected_text TEXT NOT NULL,
    spoken_text   TEXT NOT NULL DEFAULT '',
    level         TEXT NOT NULL,
    evaluation    JSONB NOT NULL,
    error_rate    JSONB NOT NULL DEFAULT '{}',
    hints         JSONB NOT NULL DEFAULT '[]',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_practice_attempts_user_created
    ON practice_attempts (user_id, created_at DESC);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by PostgreSQL. The evaluation, error
// rate and hints are stored as JSONB.
type PostgresStore struct {
	db     DB
	closer func()
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a store on top of an existing connection or pool.
// The caller owns db and must call [PostgresStore.Migrate] before use.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres connects to dsn, verifies the connection and migrates the
// schema. The returned store owns the pool and closes it in Close.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("history: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history: ping: %w", err)
	}
	s := &PostgresStore{db: pool, closer: pool.Close}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate executes the [Schema] DDL against the database.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("history: migrate: %w", err)
	}
	return nil
}

// Save inserts r. Saving an existing ID replaces the stored record.
func (s *PostgresStore) Save(ctx context.Context, r *Record) error {
	if err := validateForSave(r); err != nil {
		return err
	}

	evalJSON, err := json.Marshal(r.Evaluation)
	if err != nil {
		return fmt.Errorf("history: marshal evaluation: %w", err)
	}
	werJSON, err := json.Marshal(r.ErrorRate)
	if err != nil {
		return fmt.Errorf("history: marshal error rate: %w", err)
	}
	hints := r.Hints
	if hints == nil {
		hints = []string{}
	}
	hintsJSON, err := json.Marshal(hints)
	if err != nil {
		return fmt.Errorf("history: marshal hints: %w", err)
	}

	const query = `
		INSERT INTO practice_attempts (
			id, user_id, mode, expected_text, spoken_text,
			level, evaluation, error_rate, hints, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			mode = EXCLUDED.mode,
			expected_text = EXCLUDED.expected_text,
			spoken_text = EXCLUDED.spoken_text,
			level = EXCLUDED.level,
			evaluation = EXCLUDED.evaluation,
			error_rate = EXCLUDED.error_rate,
			hints = EXCLUDED.hints`

	_, err = s.db.Exec(ctx, query,
		r.ID, r.UserID, string(r.Mode), r.ExpectedText, r.SpokenText,
		string(r.Evaluation.Level), evalJSON, werJSON, hintsJSON, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("history: save %q: %w", r.ID, err)
	}
	return nil
}

const selectColumns = `
	SELECT id, user_id, mode, expected_text, spoken_text,
	       evaluation, error_rate, hints, created_at
	FROM practice_attempts`

// Get returns the record with the given ID or [ErrNotFound].
func (s *PostgresStore) Get(ctx context.Context, id string) (*Record, error) {
	r, err := scanRecord(s.db.QueryRow(ctx, selectColumns+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("history: get %q: %w", id, err)
	}
	return r, nil
}

// List returns up to limit records of userID, newest first.
func (s *PostgresStore) List(ctx context.Context, userID string, limit int) ([]Record, error) {
	var (
		rows pgx.Rows
		err  error
	)
	const order = ` WHERE user_id = $1 ORDER BY created_at DESC, id`
	if limit > 0 {
		rows, err = s.db.Query(ctx, selectColumns+order+` LIMIT $2`, userID, limit)
	} else {
		rows, err = s.db.Query(ctx, selectColumns+order, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("history: list scan: %w", err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	return out, nil
}

// Ping runs a trivial query.
func (s *PostgresStore) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("history: ping: %w", err)
	}
	return nil
}

// Close releases the pool when the store was created by [OpenPostgres].
func (s *PostgresStore) Close() error {
	if s.closer != nil {
		s.closer()
	}
	return nil
}

func scanRecord(row pgx.Row) (*Record, error) {
	var (
		r                           Record
		mode                        string
		evalJSON, werJSON, hintJSON []byte
	)
	if err := row.Scan(
		&r.ID, &r.UserID, &mode, &r.ExpectedText, &r.SpokenText,
		&evalJSON, &werJSON, &hintJSON, &r.CreatedAt,
	); err != nil {
		return nil, err
	}
	r.Mode = Mode(mode)
	if err := json.Unmarshal(evalJSON, &r.Evaluation); err != nil {
		return nil, fmt.Errorf("history: unmarshal evaluation: %w", err)
	}
	if len(werJSON) > 0 {
		if err := json.Unmarshal(werJSON, &r.ErrorRate); err != nil {
			return nil, fmt.Errorf("history: unmarshal error rate: %w", err)
		}
	}
	if len(hintJSON) > 0 {
		if err := json.Unmarshal(hintJSON, &r.Hints); err != nil {
			return nil, fmt.Errorf("history: unmarshal hints: %w", err)
		}
	}
	if len(r.Hints) == 0 {
		r.Hints = nil
	}
	return &r, nil
}
