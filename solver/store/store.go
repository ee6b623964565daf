package store

import (
	"context"
	"embed"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema embed.FS

// DB is the optional attempt log. Nothing in the solve loop depends on it
// being present.
type DB struct{ *pgxpool.Pool }

func Open(dsn string) (*DB, error) {
	p, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, err
	}
	return &DB{p}, nil
}

func (db *DB) Close(ctx context.Context)      { db.Pool.Close() }
func (db *DB) Ping(ctx context.Context) error { return db.Pool.Ping(ctx) }

func Migrate(ctx context.Context, db *DB) error {
	sqlBytes, err := schema.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, string(sqlBytes))
	return err
}

// Attempt is one chunk-count try on a round.
type Attempt struct {
	RoundID    string
	Chunks     int
	Feasible   bool
	Confidence float64
	Score      float64
	Nodes      int
	Improved   bool
}

// InsertAttempt records one solve attempt.
func (db *DB) InsertAttempt(ctx context.Context, a Attempt) error {
	var conf, score any
	if a.Feasible {
		conf, score = a.Confidence, a.Score
	}
	_, err := db.Exec(ctx, `
        INSERT INTO attempts(round_id, chunks, feasible, confidence, score, nodes, improved)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
    `, a.RoundID, a.Chunks, a.Feasible, conf, score, a.Nodes, a.Improved)
	return err
}

// InsertSubmission records answers posted for a round and how many of the
// codes replaced earlier ones.
func (db *DB) InsertSubmission(ctx context.Context, roundID string, answers []string, retaken int) error {
	_, err := db.Exec(ctx, `
        INSERT INTO submissions(round_id, answers, retaken)
        VALUES ($1,$2,$3)
    `, roundID, answers, retaken)
	return err
}

// CountAttempts returns how many attempts and submissions are logged for round.
func (db *DB) CountAttempts(ctx context.Context, roundID string) (attempts, submissions int, err error) {
	err = db.QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM attempts WHERE round_id = $1)::int,
		       (SELECT COUNT(*) FROM submissions WHERE round_id = $1)::int
	`, roundID).Scan(&attempts, &submissions)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, nil
	}
	return
}
