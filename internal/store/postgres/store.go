package postgres

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	otelpgx "github.com/webitel/webitel-go-kit/infra/otel/instrumentation/pgx"

	conf "github.com/ketvonryn/Trend-Micro-Vision-One---mensal/config"
	"github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/errors"
	"github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/store"
)

// Store is the struct implementing the Store interface.
type Store struct {
	historyStore store.HistoryStore
	config       *conf.DatabaseConfig
	conn         *pgxpool.Pool
}

// New creates a new Store instance.
func New(config *conf.DatabaseConfig) *Store {
	return &Store{config: config}
}

func (s *Store) History() store.HistoryStore {
	if s.historyStore == nil {
		hs, err := NewHistoryStore(s)
		if err != nil {
			return nil
		}
		s.historyStore = hs
	}
	return s.historyStore
}

// Database returns the database connection or a custom error if it is not opened.
func (s *Store) Database() (*pgxpool.Pool, error) {
	if s.conn == nil {
		return nil, errors.New("database connection is not opened", errors.WithCode(errors.CodeUnavailable))
	}
	return s.conn, nil
}

// Open establishes a connection to the database.
func (s *Store) Open(ctx context.Context) error {
	config, err := pgxpool.ParseConfig(s.config.Url)
	if err != nil {
		return errors.New("invalid data source", errors.WithCause(err), errors.WithCode(errors.CodeInvalidArgument))
	}

	// Attach the OpenTelemetry tracer for pgx
	config.ConnConfig.Tracer = otelpgx.NewTracer(otelpgx.WithTrimSQLInSpanName())

	conn, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return errors.New("open pool", errors.WithCause(err), errors.WithCode(errors.CodeUnavailable))
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return errors.New("ping database", errors.WithCause(err), errors.WithCode(errors.CodeUnavailable))
	}
	s.conn = conn
	slog.Debug("vision_report.store.connection_opened", slog.String("message", "postgres: connection opened"))
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.conn != nil {
		s.conn.Close()
		slog.Debug("vision_report.store.connection_closed", slog.String("message", "postgres: connection closed"))
		s.conn = nil
	}
	return nil
}
