package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sandevgo/lilybot/internal/core"
)

// FactsRepo keeps fact rows in facts and their embeddings in the facts_vec
// KNN index, linked by rowid.
type FactsRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewFactsRepo prepares the vector index for embeddings of width dims.
func NewFactsRepo(ctx context.Context, db *sql.DB, dims int) (*FactsRepo, error) {
	if err := ensureVectorIndex(ctx, db, dims); err != nil {
		return nil, err
	}
	return &FactsRepo{db: db, now: time.Now}, nil
}

func (r *FactsRepo) Insert(ctx context.Context, content string, embedding []float32) (string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	id := uuid.NewString()
	if err := insertFact(ctx, tx, id, content, embedding, r.now()); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// Replace removes id and stores content under a fresh id. Nothing changes
// when id does not exist.
func (r *FactsRepo) Replace(ctx context.Context, id, content string, embedding []float32) (string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := deleteFact(ctx, tx, id); err != nil {
		return "", err
	}

	newID := uuid.NewString()
	if err := insertFact(ctx, tx, newID, content, embedding, r.now()); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return newID, nil
}

func (r *FactsRepo) Get(ctx context.Context, id string) (core.StoredFact, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, content, embedding, dims, created_at FROM facts WHERE id = ?`, id)

	f, err := scanFact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.StoredFact{}, fmt.Errorf("fact %s: %w", id, core.ErrMemoryNotFound)
	}
	return f, err
}

func (r *FactsRepo) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := deleteFact(ctx, tx, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Nearest returns up to k facts closest to embedding, nearest first. Score
// is the cosine similarity.
func (r *FactsRepo) Nearest(ctx context.Context, embedding []float32, k int) ([]core.Fact, error) {
	if k <= 0 {
		return nil, nil
	}
	blob, err := serializeVector(embedding)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		WITH knn AS (
			SELECT rowid, distance FROM facts_vec
			WHERE embedding MATCH ? AND k = ?
		)
		SELECT f.id, f.content, f.created_at, knn.distance
		FROM knn JOIN facts f ON f.seq = knn.rowid
		ORDER BY knn.distance`, blob, k)
	if err != nil {
		return nil, fmt.Errorf("knn search: %w", err)
	}
	defer rows.Close()

	var facts []core.Fact
	for rows.Next() {
		var (
			f        core.Fact
			created  int64
			distance float64
		)
		if err := rows.Scan(&f.ID, &f.Content, &created, &distance); err != nil {
			return nil, err
		}
		f.CreatedAt = time.UnixMilli(created)
		f.Score = float32(1 - distance)
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...any) error
}

func insertFact(ctx context.Context, db execer, id, content string, embedding []float32, at time.Time) error {
	blob, err := serializeVector(embedding)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO facts (id, content, embedding, dims, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, content, blob, len(embedding), at.UnixMilli())
	if err != nil {
		if isConstraintError(err) {
			return fmt.Errorf("insert fact %s: %w", id, core.ErrDuplicateFact)
		}
		return fmt.Errorf("insert fact: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO facts_vec (rowid, embedding) VALUES (?, ?)`, seq, blob); err != nil {
		return fmt.Errorf("index fact: %w", err)
	}
	return nil
}

func deleteFact(ctx context.Context, db execer, id string) error {
	if _, err := db.ExecContext(ctx,
		`DELETE FROM facts_vec WHERE rowid = (SELECT seq FROM facts WHERE id = ?)`, id); err != nil {
		return fmt.Errorf("unindex fact: %w", err)
	}
	res, err := db.ExecContext(ctx, `DELETE FROM facts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete fact: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("fact %s: %w", id, core.ErrMemoryNotFound)
	}
	return nil
}

func scanFact(s scanner) (core.StoredFact, error) {
	var (
		f       core.StoredFact
		blob    []byte
		dims    int
		created int64
	)
	if err := s.Scan(&f.ID, &f.Content, &blob, &dims, &created); err != nil {
		return core.StoredFact{}, err
	}
	vec, err := deserializeVector(blob, dims)
	if err != nil {
		return core.StoredFact{}, fmt.Errorf("fact %s: %w", f.ID, err)
	}
	f.Embedding = vec
	f.CreatedAt = time.UnixMilli(created)
	return f, nil
}
