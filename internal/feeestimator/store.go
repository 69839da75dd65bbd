package feeestimator

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/airbitz-style/walletcore/internal/applog"
	"github.com/airbitz-style/walletcore/internal/walleterr"
)

// PostgresStore persists stratum fee samples in a small upsert-on-conflict
// table, one row per confirmation-block target (adapted from the
// forensics engine's pgxpool connect/ping/upsert scaffolding).
type PostgresStore struct {
	pool *pgxpool.Pool
	log  *applog.Logger
}

// Connect opens a pgxpool connection and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, walleterr.Wrap(walleterr.KindIO, "connect to fee sample database", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, walleterr.Wrap(walleterr.KindIO, "ping fee sample database", err)
	}
	log := applog.Component("FeeEstimatorStore")
	log.Infof("connected to fee sample database")
	return &PostgresStore{pool: pool, log: log}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema creates the fee_sample table if it does not already exist.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS fee_sample (
	blocks        INTEGER PRIMARY KEY,
	fee_btc_per_kb DOUBLE PRECISION NOT NULL,
	observed_at   TIMESTAMPTZ NOT NULL
);
`
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return walleterr.Wrap(walleterr.KindIO, "create fee_sample table", err)
	}
	return nil
}

// UpsertSamples writes one row per sample, replacing any existing row for
// the same confirmation-block target.
func (s *PostgresStore) UpsertSamples(ctx context.Context, samples []Sample, observedAt time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return walleterr.Wrap(walleterr.KindIO, "begin fee sample transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const upsertSQL = `
		INSERT INTO fee_sample (blocks, fee_btc_per_kb, observed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (blocks) DO UPDATE
		SET fee_btc_per_kb = EXCLUDED.fee_btc_per_kb, observed_at = EXCLUDED.observed_at;
	`
	for _, sample := range samples {
		if _, err := tx.Exec(ctx, upsertSQL, sample.Blocks, sample.FeeBtcPerKb, observedAt); err != nil {
			return walleterr.Wrap(walleterr.KindIO, "upsert fee_sample row", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return walleterr.Wrap(walleterr.KindIO, "commit fee sample transaction", err)
	}
	return nil
}

// LatestUpdate returns the most recent observed_at across all samples.
func (s *PostgresStore) LatestUpdate(ctx context.Context) (time.Time, bool, error) {
	var latest *time.Time
	err := s.pool.QueryRow(ctx, `SELECT MAX(observed_at) FROM fee_sample`).Scan(&latest)
	if err != nil {
		return time.Time{}, false, walleterr.Wrap(walleterr.KindIO, "query latest fee sample timestamp", err)
	}
	if latest == nil || latest.IsZero() {
		return time.Time{}, false, nil
	}
	return *latest, true, nil
}

// Samples returns every currently persisted fee sample.
func (s *PostgresStore) Samples(ctx context.Context) ([]Sample, error) {
	rows, err := s.pool.Query(ctx, `SELECT blocks, fee_btc_per_kb FROM fee_sample ORDER BY blocks`)
	if err != nil {
		return nil, walleterr.Wrap(walleterr.KindIO, "query fee samples", err)
	}
	defer rows.Close()

	var out []Sample
	for rows.Next() {
		var sample Sample
		if err := rows.Scan(&sample.Blocks, &sample.FeeBtcPerKb); err != nil {
			return nil, walleterr.Wrap(walleterr.KindIO, "scan fee sample row", err)
		}
		out = append(out, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, walleterr.Wrap(walleterr.KindIO, "iterate fee sample rows", err)
	}
	return out, nil
}
