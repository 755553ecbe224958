package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/sandevgo/lilybot/pkg/log"
)

func init() {
	// Every connection mattn/go-sqlite3 opens from here on gets vec0 and the
	// vec_* functions.
	sqlite_vec.Auto()
}

func serializeVector(vec []float32) ([]byte, error) {
	blob, err := sqlite_vec.SerializeFloat32(vec)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize vector: %w", err)
	}
	return blob, nil
}

func deserializeVector(blob []byte, dims int) ([]float32, error) {
	if len(blob) != dims*4 {
		return nil, fmt.Errorf("vector blob is %d bytes, want %d", len(blob), dims*4)
	}
	vec := make([]float32, dims)
	if err := binary.Read(bytes.NewReader(blob), binary.LittleEndian, vec); err != nil {
		return nil, fmt.Errorf("failed to deserialize vector: %w", err)
	}
	return vec, nil
}

// ensureVectorIndex creates the facts_vec KNN table for the embedding width
// in use and indexes facts stored before it existed. vec0 columns have a
// fixed width, so an index built for another width is an error.
func ensureVectorIndex(ctx context.Context, db *sql.DB, dims int) error {
	if dims <= 0 {
		return fmt.Errorf("vector index needs a positive dimension, got %d", dims)
	}
	column := fmt.Sprintf("embedding float[%d] distance_metric=cosine", dims)

	var ddl string
	err := db.QueryRowContext(ctx, `SELECT sql FROM sqlite_master WHERE name = 'facts_vec'`).Scan(&ddl)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `CREATE VIRTUAL TABLE facts_vec USING vec0(`+column+`)`); err != nil {
			return fmt.Errorf("create vector index: %w", err)
		}
	case err != nil:
		return fmt.Errorf("inspect vector index: %w", err)
	case !strings.Contains(ddl, fmt.Sprintf("float[%d]", dims)):
		return fmt.Errorf("vector index was built for another embedding width (%s), want %d", ddl, dims)
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO facts_vec (rowid, embedding)
		SELECT seq, embedding FROM facts
		WHERE dims = ? AND seq NOT IN (SELECT rowid FROM facts_vec)`, dims)
	if err != nil {
		return fmt.Errorf("backfill vector index: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		log.FromCtx(ctx).Info().Int64("facts", n).Msg("vector index backfilled")
	}
	return nil
}
