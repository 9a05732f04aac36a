package postgres

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"

	dberr "github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/errors"
	"github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/model"
	"github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/store"
)

const historyTable = "vision_report.export_history"

const schemaDDL = `
CREATE SCHEMA IF NOT EXISTS vision_report;
CREATE TABLE IF NOT EXISTS vision_report.export_history (
	id         bigserial PRIMARY KEY,
	run_id     text   NOT NULL,
	client     text   NOT NULL,
	dataset    text   NOT NULL,
	ref_month  text   NOT NULL,
	status     text   NOT NULL,
	rows       bigint NOT NULL DEFAULT 0,
	restarts   int    NOT NULL DEFAULT 0,
	error      text,
	started_at bigint NOT NULL,
	updated_at bigint NOT NULL,
	CONSTRAINT export_history_run_dataset_key UNIQUE (run_id, dataset)
);
CREATE INDEX IF NOT EXISTS export_history_client_month_idx
	ON vision_report.export_history (client, ref_month);
`

type History struct {
	storage *Store
}

func (h *History) EnsureSchema(ctx context.Context) error {
	db, err := h.storage.Database()
	if err != nil {
		return dberr.NewDBInternalError("ensure_schema", err)
	}
	if _, err := db.Exec(ctx, schemaDDL); err != nil {
		return dberr.NewDBInternalError("ensure_schema", err)
	}
	return nil
}

func (h *History) InsertExportHistory(ctx context.Context, input *model.NewExportHistory) (int64, error) {
	db, err := h.storage.Database()
	if err != nil {
		return 0, dberr.NewDBInternalError("insert_export_history", err)
	}

	query := `
		INSERT INTO vision_report.export_history
			(run_id, client, dataset, ref_month, status, started_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING id
	`

	var id int64
	err = db.QueryRow(
		ctx,
		query,
		input.RunID,
		input.Client,
		input.Dataset,
		input.Month,
		input.Status,
		input.StartedAt,
	).Scan(&id)
	if err != nil {
		return 0, mapError("insert_export_history", err)
	}

	return id, nil
}

func (h *History) UpdateExportStatus(ctx context.Context, input *model.UpdateExportStatus) error {
	db, err := h.storage.Database()
	if err != nil {
		return dberr.NewDBInternalError("update_export_status", err)
	}

	query := `
		UPDATE vision_report.export_history
		SET status = $1,
		    rows = $2,
		    restarts = $3,
		    error = $4,
		    updated_at = $5
		WHERE id = $6
	`

	cmd, err := db.Exec(
		ctx,
		query,
		input.Status,
		input.Rows,
		input.Restarts,
		input.Error,
		time.Now().UnixMilli(),
		input.ID,
	)
	if err != nil {
		return mapError("update_export_status", err)
	}

	if cmd.RowsAffected() == 0 {
		return dberr.NewDBNotFoundError("update_export_status", "no export history record found")
	}

	return nil
}

// GetExportHistory returns one page of history, newest first, and
// whether another page follows.
func (h *History) GetExportHistory(ctx context.Context, filter *model.HistoryFilter) ([]*model.ExportHistory, bool, error) {
	db, err := h.storage.Database()
	if err != nil {
		return nil, false, dberr.NewDBInternalError("get_export_history", err)
	}

	sqlStr, args, size, err := historyQuery(filter)
	if err != nil {
		return nil, false, dberr.NewDBInternalError("get_export_history", err)
	}

	rows, err := db.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, false, mapError("get_export_history", err)
	}
	defer rows.Close()

	var records []*model.ExportHistory
	for rows.Next() {
		var r model.ExportHistory
		err := rows.Scan(
			&r.ID,
			&r.RunID,
			&r.Client,
			&r.Dataset,
			&r.Month,
			&r.Status,
			&r.Rows,
			&r.Restarts,
			&r.Error,
			&r.StartedAt,
			&r.UpdatedAt,
		)
		if err != nil {
			return nil, false, dberr.NewDBInternalError("get_export_history", err)
		}
		records = append(records, &r)
	}
	if err = rows.Err(); err != nil {
		return nil, false, dberr.NewDBInternalError("get_export_history", err)
	}

	hasNext := false
	if len(records) > size {
		hasNext = true
		records = records[:size]
	}
	return records, hasNext, nil
}

// historyQuery builds the page query. It fetches one extra row to detect
// a following page.
func historyQuery(filter *model.HistoryFilter) (string, []any, int, error) {
	if filter == nil {
		filter = &model.HistoryFilter{}
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.Size
	if size <= 0 {
		size = 20
	}

	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	query := psql.
		Select(
			"id",
			"run_id",
			"client",
			"dataset",
			"ref_month",
			"status",
			"rows",
			"restarts",
			"error",
			"started_at",
			"updated_at",
		).
		From(historyTable).
		OrderBy("started_at DESC", "id DESC").
		Offset(uint64((page - 1) * size)).
		Limit(uint64(size + 1))

	if filter.Client != "" {
		query = query.Where(sq.Eq{"client": filter.Client})
	}
	if filter.Month != "" {
		query = query.Where(sq.Eq{"ref_month": filter.Month})
	}
	if filter.RunID != "" {
		query = query.Where(sq.Eq{"run_id": filter.RunID})
	}

	sqlStr, args, err := query.ToSql()
	return sqlStr, args, size, err
}

// mapError translates Postgres errors into store errors.
func mapError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return &dberr.DBUniqueViolationError{
				DBError: *dberr.NewDBError(op, pgErr.Message),
				Column:  pgErr.ConstraintName,
			}
		case "23503": // foreign_key_violation
			return &dberr.DBForeignKeyViolationError{
				DBError:         *dberr.NewDBError(op, pgErr.Message),
				ForeignKeyTable: pgErr.TableName,
			}
		}
	}
	return dberr.NewDBInternalError(op, err)
}

func NewHistoryStore(store *Store) (store.HistoryStore, error) {
	if store == nil {
		return nil, dberr.NewDBInternalError("new_store", errors.New("store is nil"))
	}
	return &History{storage: store}, nil
}
