package commands

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"google.golang.org/api/sheets/v4"

	"github.com/iter8-sheets/iter8/datasheet"
)

type report struct {
	title string
	data  string
}

type logEntry struct {
	timestamp time.Time
	worksheet string
	cells     int
	source    string
}

func clear(google *sheets.Service, spreadsheet string, ranges []string, ctx context.Context) error {
	rq := sheets.BatchClearValuesRequest{
		Ranges: ranges,
	}

	if _, err := google.Spreadsheets.Values.BatchClear(spreadsheet, &rq).Context(ctx).Do(); err != nil {
		return err
	}

	return nil
}

// writeReport replaces the contents of a report range with the list of pending
// changes, preceded by a timestamp.
func writeReport(google *sheets.Service, spreadsheet string, area string, changes []datasheet.CellChange, ctx context.Context) error {
	format, err := buildReportFormat(area)
	if err != nil {
		return err
	}

	infof("Clearing existing report from worksheet")
	if err := clear(google, spreadsheet, []string{format.title, format.data}, ctx); err != nil {
		return err
	}

	infof("Writing report to worksheet")

	timestamp := sheets.ValueRange{
		Range: format.title,
		Values: [][]any{
			{time.Now().Format("2006-01-02 15:04:05")},
		},
	}

	values := sheets.ValueRange{
		Range:  format.data,
		Values: makeReport(changes),
	}

	rq := sheets.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data:             []*sheets.ValueRange{&timestamp, &values},
	}

	if _, err := google.Spreadsheets.Values.BatchUpdate(spreadsheet, &rq).Context(ctx).Do(); err != nil {
		return fmt.Errorf("error writing report to Google Sheets (%w)", err)
	}

	return nil
}

func buildReportFormat(area string) (*report, error) {
	match := regexp.MustCompile(`(.+?)!([a-zA-Z]+)([0-9]+):([a-zA-Z]+)([0-9]+)?`).FindStringSubmatch(area)
	if len(match) < 5 {
		return nil, fmt.Errorf("invalid report-range '%s' - expected something like 'Audit!A1:D'", area)
	}

	name := match[1]
	left := match[2]
	top, _ := strconv.Atoi(match[3])
	right := match[4]

	format := report{
		title: fmt.Sprintf("%v!%v%v:%v%v", name, left, top, left, top),
		data:  fmt.Sprintf("%v!%v%v:%v", name, left, top+2, right),
	}

	return &format, nil
}

func makeReport(changes []datasheet.CellChange) [][]any {
	rows := [][]any{
		{"Cell", "Column", "From", "To"},
	}

	for _, c := range changes {
		rows = append(rows, []any{c.Range, c.Column, datasheet.FormatValue(c.From), datasheet.FormatValue(c.To)})
	}

	return rows
}

// appendLog appends a summary row to the log range. Columns are matched by
// header name, falling back to timestamp/worksheet/cells/source if the log
// sheet has no header.
func appendLog(google *sheets.Service, spreadsheet string, area string, entry logEntry, ctx context.Context) error {
	response, err := google.Spreadsheets.Values.Get(spreadsheet, area).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to retrieve column headers from log sheet (%w)", err)
	}

	var header []any
	if len(response.Values) > 0 {
		header = response.Values[0]
	}

	index := logIndex(header)

	debugf("Log sheet column index: %v", index)

	rows := sheets.ValueRange{
		Values: [][]any{makeLogRow(index, entry)},
	}

	if _, err := google.Spreadsheets.Values.Append(spreadsheet, area, &rows).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do(); err != nil {
		return fmt.Errorf("error writing log to Google Sheets (%w)", err)
	}

	return nil
}

func logIndex(header []any) map[string]int {
	index := map[string]int{}

	for i, v := range header {
		switch k := normalise(fmt.Sprintf("%v", v)); k {
		case "timestamp", "worksheet", "cells", "source":
			index[k] = i
		}
	}

	if len(index) == 0 {
		return map[string]int{
			"timestamp": 0,
			"worksheet": 1,
			"cells":     2,
			"source":    3,
		}
	}

	return index
}

func makeLogRow(index map[string]int, entry logEntry) []any {
	columns := 0
	for _, v := range index {
		if v >= columns {
			columns = v + 1
		}
	}

	row := make([]any, columns)
	for i := range row {
		row[i] = ""
	}

	if ix, ok := index["timestamp"]; ok {
		row[ix] = entry.timestamp.Format("2006-01-02 15:04:05")
	}

	if ix, ok := index["worksheet"]; ok {
		row[ix] = entry.worksheet
	}

	if ix, ok := index["cells"]; ok {
		row[ix] = entry.cells
	}

	if ix, ok := index["source"]; ok {
		row[ix] = entry.source
	}

	return row
}
