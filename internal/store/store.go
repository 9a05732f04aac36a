package store

import (
	"context"

	"github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/model"
)

type Store interface {
	History() HistoryStore

	// ------------ Database Management ------------ //
	Open(ctx context.Context) error // Return custom DB error
	Close() error                   // Return custom DB error
}

// HistoryStore records the outcome of every dataset of every run.
type HistoryStore interface {
	EnsureSchema(ctx context.Context) error
	InsertExportHistory(ctx context.Context, input *model.NewExportHistory) (int64, error)
	UpdateExportStatus(ctx context.Context, input *model.UpdateExportStatus) error
	GetExportHistory(ctx context.Context, filter *model.HistoryFilter) ([]*model.ExportHistory, bool, error)
}
