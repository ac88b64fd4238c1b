package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"PriceHunter/internal/domain/models"
	domrepo "PriceHunter/internal/domain/repository"
	pkgch "PriceHunter/pkg/clickhouse"
	applogger "PriceHunter/pkg/logger"
)

// ObservationSchema are the idempotent DDL statements for the observation
// archive. Passed to clickhouse.Client.InitSchema on startup.
var ObservationSchema = []string{
	`CREATE TABLE IF NOT EXISTS price_observations (
        ts          DateTime,
        query       String,
        store       LowCardinality(String),
        name        String,
        price       Float64,
        url         String
    ) ENGINE = MergeTree()
    PARTITION BY toYYYYMM(ts)
    ORDER BY (query, store, ts)`,
}

var (
	_ domrepo.ObservationSink    = (*CHObservationStore)(nil)
	_ domrepo.ObservationHistory = (*CHObservationStore)(nil)
)

// CHObservationStore implements ObservationSink and ObservationHistory
// backed by ClickHouse.
type CHObservationStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

// NewCHObservationStore creates ClickHouse observation storage.
func NewCHObservationStore(ch *pkgch.Client) *CHObservationStore {
	return &CHObservationStore{db: ch.DB(), table: "price_observations"}
}

// SetLogger injects a structured logger.
func (s *CHObservationStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHObservationStore) Publish(ctx context.Context, obs *models.PriceObservation) error {
	q := fmt.Sprintf("INSERT INTO %s (ts, query, store, name, price, url) VALUES (?, ?, ?, ?, ?, ?)", s.table)
	_, err := s.db.ExecContext(ctx, q,
		obs.ObservedAt,
		obs.Query,
		string(obs.Store),
		obs.Name,
		obs.Price,
		obs.URL,
	)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse observation insert error",
				applogger.String("query", obs.Query),
				applogger.String("store", string(obs.Store)),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("insert observation: %w", err)
	}
	return nil
}

// History returns archived prices for a query and store, oldest first.
func (s *CHObservationStore) History(ctx context.Context, query string, store models.Store, from, to time.Time, limit int) ([]models.PriceEntry, error) {
	start := time.Now()
	const qtpl = `
        SELECT ts, price
        FROM %s
        WHERE query = ? AND store = ? AND ts >= ? AND ts <= ?
        ORDER BY ts ASC
        LIMIT ?
    `
	q := fmt.Sprintf(qtpl, s.table)
	rows, err := s.db.QueryContext(ctx, q, query, string(store), from, to, limit)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse history query error",
				applogger.String("query", query),
				applogger.String("store", string(store)),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("observation history: %w", err)
	}
	defer rows.Close()

	out := make([]models.PriceEntry, 0, limit)
	for rows.Next() {
		var e models.PriceEntry
		if err := rows.Scan(&e.ObservedAt, &e.Price); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Info("clickhouse history ok",
			applogger.String("query", query),
			applogger.String("store", string(store)),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *CHObservationStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHObservationStore) Close() error {
	return nil // pool is owned by the clickhouse client
}
