package model

// DatasetTask is the live status of one dataset of a run, kept in Redis
// for operators. It must be JSON-serializable.
type DatasetTask struct {
	RunID   string       `json:"run_id"`
	Dataset string       `json:"dataset"`
	Month   string       `json:"month"`
	Status  ExportStatus `json:"status"`

	// Export fields are only set for orchestrated datasets.
	ExportState string   `json:"export_state,omitempty"`
	Progress    *float64 `json:"progress,omitempty"`
	Handle      string   `json:"handle,omitempty"`
	SourceURL   string   `json:"source_url,omitempty"`
	Restarts    int      `json:"restarts"`
	Polls       int      `json:"polls"`

	HistoryID int64  `json:"history_id,omitempty"`
	Rows      int    `json:"rows"`
	Error     string `json:"error,omitempty"`
	UpdatedAt int64  `json:"updated_at"`
}
