package main

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/communalgrowth/docsub/internal/engine"
	"github.com/communalgrowth/docsub/internal/search"
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
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
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

// renderReport lists the non-zero counters of a report.
func renderReport(rep *engine.Report) string {
	var rows [][]string
	for _, a := range rep.LogValue().Group() {
		switch a.Value.Kind() {
		case slog.KindInt64:
			if a.Value.Int64() == 0 {
				continue
			}
			rows = append(rows, []string{a.Key, strconv.FormatInt(a.Value.Int64(), 10)})
		case slog.KindBool:
			if !a.Value.Bool() {
				continue
			}
			rows = append(rows, []string{a.Key, "yes"})
		}
	}
	if len(rows) == 0 {
		return "nothing to do"
	}
	return renderTable([]string{"Outcome", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
}

// renderRows draws search and recent listings.
func renderRows(rows []search.Row) string {
	if len(rows) == 0 {
		return "no documents"
	}
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{
			r.ID,
			r.Title,
			strings.Join(r.Authors, "; "),
			strings.Join(r.Subscribers, ", "),
		})
	}
	return renderTable([]string{"ID", "Title", "Authors", "Subscribers"}, out, nil)
}
