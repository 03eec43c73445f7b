package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/signalsfoundry/trajectory-segmenter/window"
)

// Output formats for solve results.
const (
	outputTable    = "table"
	outputMarkdown = "markdown"
	outputCSV      = "csv"
	outputJSON     = "json"
)

type renderFunc func(out io.Writer, res *window.Window, format window.TimeFormat) error

func rendererFor(name string) (renderFunc, error) {
	switch name {
	case "", outputTable:
		return func(out io.Writer, res *window.Window, format window.TimeFormat) error {
			_, err := fmt.Fprintln(out, resultTable(res, format).Render())
			return err
		}, nil
	case outputMarkdown:
		return func(out io.Writer, res *window.Window, format window.TimeFormat) error {
			_, err := fmt.Fprintln(out, resultTable(res, format).RenderMarkdown())
			return err
		}, nil
	case outputCSV:
		return func(out io.Writer, res *window.Window, format window.TimeFormat) error {
			return res.WriteCSV(out, format)
		}, nil
	case outputJSON:
		return writeJSON, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want table, markdown, csv or json)", name)
	}
}

func resultTable(res *window.Window, format window.TimeFormat) table.Writer {
	w := table.NewWriter()
	w.SetStyle(table.StyleLight)
	w.AppendHeader(table.Row{"#", "start", "end", "duration (s)"})
	for i, r := range res.Rows(format) {
		w.AppendRow(table.Row{i + 1, r.Start, r.End, fmt.Sprintf("%.3f", r.Duration)})
	}
	w.AppendFooter(table.Row{"", "", fmt.Sprintf("%d intervals", res.Len()), fmt.Sprintf("%.3f", res.Measure())})
	w.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight, AlignFooter: text.AlignRight},
	})
	return w
}

type jsonInterval struct {
	Start    string  `json:"start"`
	End      string  `json:"end"`
	Duration float64 `json:"duration_s"`
}

type jsonResult struct {
	Count     int            `json:"count"`
	Measure   float64        `json:"measure_s"`
	Intervals []jsonInterval `json:"intervals"`
}

func writeJSON(out io.Writer, res *window.Window, format window.TimeFormat) error {
	rows := res.Rows(format)
	doc := jsonResult{Count: res.Len(), Measure: res.Measure(), Intervals: make([]jsonInterval, 0, len(rows))}
	for _, r := range rows {
		doc.Intervals = append(doc.Intervals, jsonInterval(r))
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
