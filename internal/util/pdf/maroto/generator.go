package maroto

import (
	"fmt"
	"strconv"
	"time"

	"github.com/johnfercher/maroto/pkg/consts"
	"github.com/johnfercher/maroto/pkg/pdf"
	"github.com/johnfercher/maroto/pkg/props"

	"github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/model"
)

var summaryHeader = []string{"Dataset", "Sheet", "Status", "Rows", "Restarts", "Elapsed"}

// GenerateSummary renders a one-page report of a run: a heading block
// and one table row per dataset, followed by the errors of failed ones.
func GenerateSummary(s *model.RunSummary) ([]byte, error) {
	m := pdf.NewMaroto(consts.Portrait, consts.A4)
	m.SetBorder(false)

	m.Row(12, func() {
		m.Col(12, func() {
			m.Text(fmt.Sprintf("Vision One monthly report - %s", s.Client), props.Text{
				Size:  14,
				Style: consts.Bold,
				Align: consts.Left,
			})
		})
	})
	heading := []string{
		"Reference month: " + s.Month,
		"Run: " + s.RunID,
		"Workbook: " + s.Workbook,
		fmt.Sprintf("Started %s, finished %s", s.StartedAt.Format(time.RFC3339), s.FinishedAt.Format(time.RFC3339)),
	}
	for _, line := range heading {
		m.Row(6, func() {
			m.Col(12, func() {
				m.Text(line, props.Text{Size: 9, Align: consts.Left})
			})
		})
	}
	m.Line(4)

	m.TableList(summaryHeader, summaryRows(s), props.TableList{
		HeaderProp: props.TableListContent{Size: 9, GridSizes: []uint{3, 3, 2, 1, 1, 2}},
		ContentProp: props.TableListContent{Size: 8, GridSizes: []uint{3, 3, 2, 1, 1, 2}},
		Align:              consts.Left,
		HeaderContentSpace: 1,
		Line:               true,
	})

	for _, d := range s.Datasets {
		if d.Error == "" {
			continue
		}
		m.Row(10, func() {
			m.Col(12, func() {
				m.Text(d.Name+": "+d.Error, props.Text{Size: 8, Top: 2, Align: consts.Left})
			})
		})
	}

	buf, err := m.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to generate output: %w", err)
	}

	return buf.Bytes(), nil
}

func summaryRows(s *model.RunSummary) [][]string {
	rows := make([][]string, 0, len(s.Datasets))
	for _, d := range s.Datasets {
		rows = append(rows, []string{
			d.Name,
			d.Sheet,
			string(d.Status),
			strconv.Itoa(d.Rows),
			strconv.Itoa(d.Restarts),
			d.Elapsed.Round(time.Second).String(),
		})
	}
	return rows
}
