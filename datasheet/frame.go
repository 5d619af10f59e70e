package datasheet

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// makeFrame builds a dataframe from worksheet values. The first row is the
// header. Every subsequent row is kept, including blank rows, so that frame
// row i always corresponds to sheet row i+2.
func makeFrame(rows [][]any, detect bool) (dataframe.DataFrame, error) {
	if len(rows) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("empty sheet")
	}

	// ... header
	header := []string{}
	index := map[string]int{}
	for i, v := range rows[0] {
		name := clean(fmt.Sprintf("%v", v))
		if name == "" {
			return dataframe.DataFrame{}, fmt.Errorf("blank column name in column %s", ColumnName(i))
		}

		if _, ok := index[normalise(name)]; ok {
			return dataframe.DataFrame{}, fmt.Errorf("duplicate column name '%s'", name)
		}

		index[normalise(name)] = i
		header = append(header, name)
	}

	if len(header) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("missing/invalid header row")
	}

	// ... records
	records := [][]string{header}
	for _, row := range rows[1:] {
		record := make([]string, len(header))
		for i := range header {
			if i < len(row) && row[i] != nil {
				record[i] = fmt.Sprintf("%v", row[i])
			}
		}

		records = append(records, record)
	}

	return makeFrameFromRecords(records, detect)
}

func makeFrameFromRecords(records [][]string, detect bool) (dataframe.DataFrame, error) {
	if len(records) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("missing header")
	}

	if len(records) == 1 {
		columns := []series.Series{}
		for _, name := range records[0] {
			columns = append(columns, series.New([]string{}, series.String, name))
		}

		df := dataframe.New(columns...)

		return df, df.Err
	}

	df := dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(detect),
		dataframe.DefaultType(series.String))

	if df.Err != nil {
		return dataframe.DataFrame{}, df.Err
	}

	return df, nil
}

func columnIndex(df dataframe.DataFrame, name string) int {
	for i, v := range df.Names() {
		if v == name {
			return i
		}
	}

	return -1
}

// cellValue returns the value to send to the Sheets API for an element. NA
// values are sent as empty strings.
func cellValue(e series.Element) any {
	if e.IsNA() {
		return ""
	}

	switch e.Type() {
	case series.Int:
		if v, err := e.Int(); err == nil {
			return v
		}

	case series.Float:
		return e.Float()

	case series.Bool:
		if v, err := e.Bool(); err == nil {
			return v
		}
	}

	return e.String()
}

func cellString(e series.Element) string {
	return FormatValue(cellValue(e))
}

// FormatValue formats a cell value as text. Floats are written in plain
// decimal notation e.g. 1000000.5 rather than 1.0000005e+06.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	}

	return fmt.Sprintf("%v", v)
}

func sameCell(a, b series.Element) bool {
	if a.IsNA() || b.IsNA() {
		return a.IsNA() && b.IsNA()
	}

	return cellString(a) == cellString(b)
}

// sameValue compares a snapshot value with a value read back from the
// worksheet, treating numerically equal values as equal e.g. 1.5 and 1.50.
func sameValue(local, remote string) bool {
	local = strings.TrimSpace(local)
	remote = strings.TrimSpace(remote)

	if local == remote {
		return true
	}

	p, err := strconv.ParseFloat(local, 64)
	if err != nil {
		return false
	}

	q, err := strconv.ParseFloat(remote, 64)
	if err != nil {
		return false
	}

	return p == q
}

// assign sets an element, restoring the previous value if the element type
// could not represent the new one.
func assign(e series.Element, v any) error {
	prev := e.Copy()

	e.Set(v)

	if v != nil && e.IsNA() && !isNaN(v) {
		if prev.IsNA() {
			e.Set(nil)
		} else {
			e.Set(cellValue(prev))
		}

		return fmt.Errorf("%w: cannot store '%v' in %v column", ErrType, v, e.Type())
	}

	return nil
}

// widen converts a value destined for an int column. Integral numbers (and
// numeric strings) are returned as ints. Any other number is returned as a
// float64 with ok set, in which case the column has to be promoted to a float
// column.
func widen(v any) (any, bool) {
	var f float64

	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return v, false
		}
		f = p
	default:
		return v, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return v, false
	}

	if f == math.Trunc(f) && math.Abs(f) < math.MaxInt32 {
		return int(f), false
	}

	return f, true
}

// promote replaces an int column with the equivalent float column. Columns
// keep their position.
func promote(frame dataframe.DataFrame, col int) (dataframe.DataFrame, error) {
	s := frame.Col(frame.Names()[col])
	values := make([]string, s.Len())
	for i := range values {
		if e := s.Elem(i); e.IsNA() {
			values[i] = "NaN"
		} else {
			values[i] = e.String()
		}
	}

	promoted := frame.Mutate(series.New(values, series.Float, s.Name))
	if promoted.Err != nil {
		return frame, promoted.Err
	}

	return promoted, nil
}

// isNaN is true for values that legitimately set an element to NA. An empty
// string clears a cell.
func isNaN(v any) bool {
	switch t := v.(type) {
	case string:
		return t == "NaN" || strings.TrimSpace(t) == ""
	case float64:
		return math.IsNaN(t)
	case float32:
		return math.IsNaN(float64(t))
	}

	return false
}

func clean(v string) string {
	return strings.TrimSpace(v)
}

func normalise(v string) string {
	return strings.ToLower(strings.ReplaceAll(v, " ", ""))
}
