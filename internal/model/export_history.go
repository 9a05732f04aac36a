// internal/model/export_history.go
package model

type ExportStatus string

const (
	ExportStatusPending    ExportStatus = "pending"
	ExportStatusProcessing ExportStatus = "processing"
	ExportStatusDone       ExportStatus = "done"
	ExportStatusFailed     ExportStatus = "failed"
)

// ExportHistory is one dataset of one report run as stored in Postgres.
// Times are Unix milliseconds.
type ExportHistory struct {
	ID        int64        `db:"id"`
	RunID     string       `db:"run_id"`
	Client    string       `db:"client"`
	Dataset   string       `db:"dataset"`
	Month     string       `db:"ref_month"`
	Status    ExportStatus `db:"status"`
	Rows      int64        `db:"rows"`
	Restarts  int32        `db:"restarts"`
	Error     *string      `db:"error"`
	StartedAt int64        `db:"started_at"`
	UpdatedAt int64        `db:"updated_at"`
}

type NewExportHistory struct {
	RunID     string       `db:"run_id"`
	Client    string       `db:"client"`
	Dataset   string       `db:"dataset"`
	Month     string       `db:"ref_month"`
	Status    ExportStatus `db:"status"`
	StartedAt int64        `db:"started_at"`
}

type UpdateExportStatus struct {
	ID       int64        `db:"id"`
	Status   ExportStatus `db:"status"`
	Rows     int64        `db:"rows"`
	Restarts int32        `db:"restarts"`
	Error    *string      `db:"error"`
}

// HistoryFilter selects history rows. Zero fields do not filter.
type HistoryFilter struct {
	Client string
	Month  string
	RunID  string
	Page   int
	Size   int
}
