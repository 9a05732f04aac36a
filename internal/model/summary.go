package model

import "time"

// RunSummary describes a finished report run.
type RunSummary struct {
	RunID      string
	Client     string
	Month      string
	Workbook   string
	StartedAt  time.Time
	FinishedAt time.Time
	Datasets   []DatasetSummary
}

type DatasetSummary struct {
	Name     string
	Sheet    string
	Status   ExportStatus
	Rows     int
	Restarts int
	Polls    int
	Elapsed  time.Duration
	Error    string
}

// Failed counts datasets that did not finish.
func (s *RunSummary) Failed() int {
	n := 0
	for _, d := range s.Datasets {
		if d.Status == ExportStatusFailed {
			n++
		}
	}
	return n
}
