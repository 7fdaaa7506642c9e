package export

import (
	"fmt"
	"strconv"

	"cast-extractor/internal/extract"
	"cast-extractor/internal/scan"
	"cast-extractor/internal/textutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

func itoa(n int) string { return strconv.Itoa(n) }

// SummaryTable renders the per-file counts of decoded, recovered and failed content.
func SummaryTable(reps []*extract.Report) string {
	headers := []string{"File", "Status", "Mode", "Members", "Decoded", "Fallback", "Failed", "Dangling", "Texts", "Sounds", "Diagnostics"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight}
	rows := make([][]string, 0, len(reps))
	for _, r := range reps {
		s := r.Summary
		mode := string(r.Mode)
		if r.Error != "" {
			mode = textutil.Truncate(r.Error, 40)
		}
		rows = append(rows, []string{
			r.File, string(r.Status), mode,
			itoa(s.Members), itoa(s.Decoded), itoa(s.Fallback), itoa(s.Failed),
			itoa(s.Dangling), itoa(s.Texts), itoa(s.Sounds), itoa(s.Diagnostics),
		})
	}
	return renderTable(headers, rows, aligns)
}

// ChunkTable renders the chunk table of one report.
func ChunkTable(r *extract.Report) string {
	headers := []string{"ID", "FourCC", "Offset", "Length", "Flags"}
	aligns := []columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignLeft}
	rows := make([][]string, 0, len(r.Chunks))
	for _, c := range r.Chunks {
		var flags string
		switch {
		case c.Truncated:
			flags = "truncated"
		case c.Synthetic:
			flags = "synthetic"
		}
		rows = append(rows, []string{
			itoa(int(c.ID)), fmt.Sprintf("%q", c.FourCC),
			fmt.Sprintf("0x%08x", c.Offset), itoa(int(c.Length)), flags,
		})
	}
	return renderTable(headers, rows, aligns)
}

// CandidateTable renders scanner output.
func CandidateTable(cs []scan.StringCandidate, maxText int) string {
	headers := []string{"Offset", "Kind", "Length", "Confidence", "Text"}
	aligns := []columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignLeft}
	rows := make([][]string, 0, len(cs))
	for _, c := range cs {
		rows = append(rows, []string{
			fmt.Sprintf("0x%08x", c.Offset), c.Kind, itoa(int(c.Length)),
			fmt.Sprintf("%.3f", c.Confidence), textutil.Truncate(c.Text, maxText),
		})
	}
	return renderTable(headers, rows, aligns)
}

// Table renders arbitrary rows with every column left aligned.
func Table(headers []string, rows [][]string) string {
	return renderTable(headers, rows, nil)
}
