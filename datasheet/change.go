package datasheet

import (
	"context"
	"fmt"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"google.golang.org/api/sheets/v4"
)

// Change is an in-progress update to a DataSheet.
type Change struct {
	sheet  *DataSheet
	base   dataframe.DataFrame
	frame  dataframe.DataFrame
	closed bool
}

// CellChange describes a single pending cell update.
type CellChange struct {
	Range  string
	Row    int
	Column string
	From   any
	To     any
}

type update struct {
	row   int
	col   int
	name  string
	value series.Element
}

// Frame returns the working copy. Elements modified in place (e.g. via
// Elem(r,c).Set) are included in the update.
func (c *Change) Frame() dataframe.DataFrame {
	return c.frame
}

// Replace swaps the working copy for a derived frame e.g. the result of a
// gota Mutate or Rename. Columns missing from the replacement and rows past
// the end of the snapshot are ignored when calculating the update.
func (c *Change) Replace(frame dataframe.DataFrame) error {
	if frame.Err != nil {
		return frame.Err
	}

	c.frame = frame

	return nil
}

func (c *Change) Get(row int, column string) (any, error) {
	return get(c.frame, row, column)
}

// Set assigns a single cell in the working copy. A nil value sets the cell to
// NA, which is written to the worksheet as an empty cell.
func (c *Change) Set(row int, column string, v any) error {
	col := columnIndex(c.frame, column)
	if col < 0 {
		return fmt.Errorf("%w: '%s'", ErrNoSuchColumn, column)
	}

	if row < 0 || row >= c.frame.Nrow() {
		return fmt.Errorf("%w: %d", ErrRowRange, row)
	}

	return c.assign(row, col, v)
}

// assign sets a cell in the working copy, promoting an int column to a float
// column if the value is not integral.
func (c *Change) assign(row, col int, v any) error {
	if c.frame.Elem(row, col).Type() == series.Int {
		w, fractional := widen(v)
		if fractional {
			frame, err := promote(c.frame, col)
			if err != nil {
				return err
			}

			c.frame = frame
		}

		v = w
	}

	return assign(c.frame.Elem(row, col), v)
}

// Apply overwrites the working copy with the non-NA values of another frame.
// Columns are matched by name and columns not in the working copy are
// ignored. Row i of other updates rows[i] if rows are given, otherwise row i.
func (c *Change) Apply(other dataframe.DataFrame, rows ...int) error {
	if other.Err != nil {
		return other.Err
	}

	if len(rows) > 0 && len(rows) != other.Nrow() {
		return fmt.Errorf("row index has %d entries, expected %d", len(rows), other.Nrow())
	}

	for j, name := range other.Names() {
		col := columnIndex(c.frame, name)
		if col < 0 {
			continue
		}

		for i := 0; i < other.Nrow(); i++ {
			row := i
			if len(rows) > 0 {
				row = rows[i]
			}

			if row < 0 || row >= c.frame.Nrow() {
				return fmt.Errorf("%w: %d", ErrRowRange, row)
			}

			e := other.Elem(i, j)
			if e.IsNA() {
				continue
			}

			if err := c.assign(row, col, cellValue(e)); err != nil {
				return fmt.Errorf("column '%s' row %d: %w", name, row, err)
			}
		}
	}

	return nil
}

// ApplyByKey is Apply with the rows of other matched to the working copy on
// the value of a key column rather than by position.
func (c *Change) ApplyByKey(other dataframe.DataFrame, key string) error {
	if other.Err != nil {
		return other.Err
	}

	rows, err := match(c.frame, other, key)
	if err != nil {
		return err
	}

	return c.Apply(other, rows...)
}

// Merge applies edits made to an earlier copy of the worksheet. base is the
// worksheet as it was when the copy was taken and only the cells that differ
// between edits and base are applied, so cells changed in the worksheet since
// then are left alone. A cell changed in both the worksheet and edits (to
// different values) is a conflict, in which case nothing is applied and the
// error is a *ConflictError. Rows are matched on the key column, or by
// position if key is blank. Cells with no counterpart in base are applied as
// they are.
func (c *Change) Merge(base, edits dataframe.DataFrame, key string) error {
	if base.Err != nil {
		return base.Err
	}

	if edits.Err != nil {
		return edits.Err
	}

	rows := make([]int, edits.Nrow())
	origin := make([]int, edits.Nrow())

	if key == "" {
		if edits.Nrow() > c.frame.Nrow() {
			return fmt.Errorf("%w: edits have %d rows, worksheet has %d", ErrRowRange, edits.Nrow(), c.frame.Nrow())
		}

		for i := range rows {
			rows[i] = i
			origin[i] = -1
			if i < base.Nrow() {
				origin[i] = i
			}
		}
	} else {
		matched, err := match(c.frame, edits, key)
		if err != nil {
			return err
		}

		copy(rows, matched)

		src := columnIndex(edits, key)
		index, duplicates := map[string]int{}, map[string]bool{}
		if col := columnIndex(base, key); col >= 0 {
			index, duplicates = keys(base, col)
		}

		for i := range origin {
			k := clean(cellString(edits.Elem(i, src)))
			if row, ok := index[k]; ok && !duplicates[k] {
				origin[i] = row
			} else {
				origin[i] = -1
			}
		}
	}

	delta := edits.Copy()
	conflicts := []Conflict{}

	for j, name := range edits.Names() {
		col := columnIndex(c.frame, name)
		b := columnIndex(base, name)
		if col < 0 || b < 0 || name == key {
			continue
		}

		for i := 0; i < edits.Nrow(); i++ {
			e := delta.Elem(i, j)
			if e.IsNA() || origin[i] < 0 {
				continue
			}

			was := cellString(base.Elem(origin[i], b))
			if sameValue(was, cellString(e)) {
				e.Set(nil)
				continue
			}

			current := cellString(c.frame.Elem(rows[i], col))
			if !sameValue(was, current) && !sameValue(current, cellString(e)) {
				conflicts = append(conflicts, Conflict{
					Range:  ToA1(rows[i]+1, col),
					Local:  was,
					Remote: current,
					Update: cellValue(e),
				})
			}
		}
	}

	if len(conflicts) > 0 {
		c.sheet.log.Warn().Int("cells", len(conflicts)).Msg("edits conflict with worksheet")
		return &ConflictError{Cells: conflicts}
	}

	return c.Apply(delta, rows...)
}

// match returns the row of frame for each row of other, matched on the value
// of a key column.
func match(frame, other dataframe.DataFrame, key string) ([]int, error) {
	src := columnIndex(other, key)
	if src < 0 {
		return nil, fmt.Errorf("%w: key column '%s' missing from edits", ErrNoSuchColumn, key)
	}

	dst := columnIndex(frame, key)
	if dst < 0 {
		return nil, fmt.Errorf("%w: '%s'", ErrNoSuchColumn, key)
	}

	index, duplicates := keys(frame, dst)

	rows := make([]int, other.Nrow())
	for i := range rows {
		k := clean(cellString(other.Elem(i, src)))
		if duplicates[k] {
			return nil, fmt.Errorf("ambiguous key '%s' - matches more than one row", k)
		}

		row, ok := index[k]
		if !ok {
			return nil, fmt.Errorf("%w: no row with %s '%s'", ErrRowRange, key, k)
		}

		rows[i] = row
	}

	return rows, nil
}

func keys(frame dataframe.DataFrame, col int) (map[string]int, map[string]bool) {
	index := map[string]int{}
	duplicates := map[string]bool{}

	for r := 0; r < frame.Nrow(); r++ {
		k := clean(cellString(frame.Elem(r, col)))
		if _, ok := index[k]; ok {
			duplicates[k] = true
		}

		index[k] = r
	}

	return index, duplicates
}

// Pending returns the update payload i.e. one single cell range for each cell
// that differs from the snapshot, in row-major order. Sheet row 1 is the
// header so frame row r is sheet row r+2.
func (c *Change) Pending() []*sheets.ValueRange {
	return payload(c.diff())
}

// Changes describes the pending cell updates, in the same order as Pending.
func (c *Change) Changes() []CellChange {
	changes := []CellChange{}
	for _, u := range c.diff() {
		changes = append(changes, CellChange{
			Range:  ToA1(u.row+1, u.col),
			Row:    u.row,
			Column: u.name,
			From:   cellValue(c.base.Elem(u.row, u.col)),
			To:     cellValue(u.value),
		})
	}

	return changes
}

// Commit writes the pending cells to the worksheet in a single batch update
// and, if the write succeeded, applies them to the DataSheet snapshot. A failed
// commit leaves the snapshot unchanged and may be retried.
func (c *Change) Commit(ctx context.Context) error {
	if c.closed {
		return ErrClosed
	}

	d := c.sheet

	updates := c.diff()
	if len(updates) == 0 {
		d.log.Debug().Msg("no changes to update")
		c.closed = true
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conflicts {
		if err := c.check(ctx, updates); err != nil {
			d.log.Warn().Err(err).Msg("update aborted")
			return err
		}
	}

	if err := d.worksheet.BatchUpdate(ctx, payload(updates)); err != nil {
		d.log.Error().Err(err).Int("cells", len(updates)).Msg("error during sheet update")
		return fmt.Errorf("error during sheet update (%w)", err)
	}

	for _, u := range updates {
		col := columnIndex(d.frame, u.name)
		if col < 0 || u.row >= d.frame.Nrow() {
			continue
		}

		dst := d.frame.Elem(u.row, col)
		if dst.Type() == series.Int && u.value.Type() == series.Float {
			if frame, err := promote(d.frame, col); err == nil {
				d.frame = frame
				dst = d.frame.Elem(u.row, col)
			}
		}

		if u.value.IsNA() {
			dst.Set(nil)
		} else {
			dst.Set(cellValue(u.value))
		}
	}

	c.closed = true

	d.log.Info().Int("cells", len(updates)).Msg("updated worksheet")

	return nil
}

// Discard abandons the change.
func (c *Change) Discard() error {
	if c.closed {
		return ErrClosed
	}

	c.closed = true

	return nil
}

func (c *Change) diff() []update {
	updates := []update{}
	columns := map[int]int{}

	for i, name := range c.base.Names() {
		if j := columnIndex(c.frame, name); j < 0 {
			c.sheet.log.Debug().Str("column", name).Msg("column not in updated frame, ignoring")
		} else {
			columns[i] = j
		}
	}

	rows := c.base.Nrow()
	if c.frame.Nrow() < rows {
		rows = c.frame.Nrow()
	}

	for r := 0; r < rows; r++ {
		for i, name := range c.base.Names() {
			j, ok := columns[i]
			if !ok {
				continue
			}

			a := c.base.Elem(r, i)
			b := c.frame.Elem(r, j)
			if !sameCell(a, b) {
				updates = append(updates, update{
					row:   r,
					col:   i,
					name:  name,
					value: b,
				})
			}
		}
	}

	return updates
}

// check re-reads the worksheet and reports the cells that were modified since
// the snapshot.
func (c *Change) check(ctx context.Context, updates []update) error {
	response, err := c.sheet.worksheet.Get(ctx)
	if err != nil {
		return err
	}

	remote := func(row, col int) string {
		if response != nil && row < len(response.Values) && col < len(response.Values[row]) && response.Values[row][col] != nil {
			return fmt.Sprintf("%v", response.Values[row][col])
		}

		return ""
	}

	conflicts := []Conflict{}
	for _, u := range updates {
		if header := remote(0, u.col); !sameValue(u.name, header) {
			conflicts = append(conflicts, Conflict{
				Range:  ToA1(0, u.col),
				Local:  u.name,
				Remote: header,
				Update: cellValue(u.value),
			})
			continue
		}

		local := cellString(c.base.Elem(u.row, u.col))
		current := remote(u.row+1, u.col)

		if !sameValue(local, current) && !sameValue(cellString(u.value), current) {
			conflicts = append(conflicts, Conflict{
				Range:  ToA1(u.row+1, u.col),
				Local:  local,
				Remote: current,
				Update: cellValue(u.value),
			})
		}
	}

	if len(conflicts) > 0 {
		return &ConflictError{Cells: conflicts}
	}

	return nil
}

func payload(updates []update) []*sheets.ValueRange {
	data := make([]*sheets.ValueRange, 0, len(updates))
	for _, u := range updates {
		data = append(data, &sheets.ValueRange{
			Range:  ToA1(u.row+1, u.col),
			Values: [][]any{{cellValue(u.value)}},
		})
	}

	return data
}
