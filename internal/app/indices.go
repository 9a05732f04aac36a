package app

import (
	"context"
	"log/slog"
	"os"

	"github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/decode"
	"github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/model"
)

// indexSource locates one dashboard index.
type indexSource struct {
	column  string
	pattern string
	term    string
	value   string
}

var indexSources = []indexSource{
	{column: "risk", pattern: "*Risk*.zip", term: "Cyber Risk Index", value: "Your company"},
	{column: "exposure", pattern: "*Exposure*.zip", term: "Exposure Index", value: "Your company"},
	{column: "attack", pattern: "*Attack*.zip", term: "AttackIndex", value: "Your company"},
	{column: "security", pattern: "*Security*Configuration*.zip", term: "Security Configuration Index", value: "Your organization"},
}

// collectIndices averages every dashboard index into a single row. A
// missing or unreadable archive scores 0. Archives are removed once read,
// so this must run after the compliance sheets.
func collectIndices(ctx context.Context, folder string) *model.Table {
	t := &model.Table{Rows: [][]any{{}}}
	for _, src := range indexSources {
		t.Columns = append(t.Columns, src.column)
		t.Rows[0] = append(t.Rows[0], readIndex(ctx, folder, src))
	}
	return t
}

func readIndex(ctx context.Context, folder string, src indexSource) float64 {
	path, err := decode.FindArchive(folder, src.pattern)
	if err != nil {
		slog.WarnContext(ctx, "vision_report.indices.archive_missing",
			slog.String("pattern", src.pattern), slog.String("error", err.Error()))
		return 0
	}

	v, err := decode.Index(path, src.term, src.value, decode.IndexSample)
	if err != nil {
		slog.WarnContext(ctx, "vision_report.indices.read_failed",
			slog.String("archive", path), slog.String("error", err.Error()))
		v = 0
	} else {
		slog.InfoContext(ctx, "vision_report.indices.computed",
			slog.String("index", src.term), slog.Float64("value", v))
	}

	if err := os.Remove(path); err != nil {
		slog.WarnContext(ctx, "vision_report.indices.remove_failed",
			slog.String("archive", path), slog.String("error", err.Error()))
	}
	return v
}
