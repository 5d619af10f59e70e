package datasheet

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/go-gota/gota/dataframe"
)

// ReadTSV loads a tab separated file with a header row into a dataframe,
// using the same rules as for worksheet values.
func ReadTSV(f io.Reader, detect bool) (dataframe.DataFrame, error) {
	r := csv.NewReader(f)
	r.Comma = '\t'
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	if len(records) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("TSV file is empty")
	}

	rows := make([][]any, 0, len(records))
	for _, record := range records {
		row := make([]any, len(record))
		for i, v := range record {
			row[i] = v
		}

		rows = append(rows, row)
	}

	return makeFrame(rows, detect)
}

// WriteTSV writes a dataframe as a tab separated file with a header row. NA
// values are written as empty fields.
func WriteTSV(f io.Writer, frame dataframe.DataFrame) error {
	if frame.Err != nil {
		return frame.Err
	}

	w := csv.NewWriter(f)
	w.Comma = '\t'

	if err := w.Write(frame.Names()); err != nil {
		return err
	}

	for r := 0; r < frame.Nrow(); r++ {
		record := make([]string, frame.Ncol())
		for c := range record {
			record[c] = cellString(frame.Elem(r, c))
		}

		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()

	return w.Error()
}

// Values converts a dataframe to worksheet values, header row first.
func Values(frame dataframe.DataFrame) [][]any {
	values := [][]any{}

	header := []any{}
	for _, name := range frame.Names() {
		header = append(header, name)
	}

	values = append(values, header)

	for r := 0; r < frame.Nrow(); r++ {
		row := make([]any, frame.Ncol())
		for c := range row {
			row[c] = cellValue(frame.Elem(r, c))
		}

		values = append(values, row)
	}

	return values
}
