package persist

import (
	"context"
	"fmt"
	"time"
)

// SampleKind distinguishes periodic rate samples from drop warnings.
type SampleKind string

const (
	KindSample SampleKind = "sample"
	KindDrop   SampleKind = "drop"
)

// SampleRow is one persisted frame-rate measurement.
type SampleRow struct {
	Session    string
	Kind       SampleKind
	FPS        float64
	Previous   float64 // rate before a drop; zero for samples
	Frame      uint64
	RecordedAt time.Time
}

type SampleRepo struct {
	db *DB
}

func NewSampleRepo(db *DB) *SampleRepo {
	return &SampleRepo{db: db}
}

// InsertSamples writes a batch of rows in a single transaction.
func (r *SampleRepo) InsertSamples(ctx context.Context, rows []SampleRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("samples begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, s := range rows {
		if _, err := tx.Exec(ctx,
			`INSERT INTO frame_samples (session, kind, fps, previous, frame, recorded_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			s.Session, string(s.Kind), s.FPS, s.Previous, int64(s.Frame), s.RecordedAt,
		); err != nil {
			return fmt.Errorf("samples insert: %w", err)
		}
	}

	return tx.Commit(ctx)
}
