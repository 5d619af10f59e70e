package datasheet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/sheets/v4"
)

type stub struct {
	sync.Mutex
	values [][]any
	remote [][]any
	gets   int
	calls  [][]*sheets.ValueRange
	err    error
}

func (s *stub) Get(ctx context.Context) (*sheets.ValueRange, error) {
	s.Lock()
	defer s.Unlock()

	s.gets++
	if s.remote != nil && s.gets > 1 {
		return &sheets.ValueRange{Values: s.remote}, nil
	}

	return &sheets.ValueRange{Values: s.values}, nil
}

func (s *stub) BatchUpdate(ctx context.Context, data []*sheets.ValueRange) error {
	s.Lock()
	defer s.Unlock()

	s.calls = append(s.calls, data)

	return s.err
}

func fixture() [][]any {
	return [][]any{
		{"col_a", "col_b", "col_c", "col_d"},
		{"A1", "B1", "10", "C1"},
		{"A2", "B2", "20", ""},
		{"A3", "B3", "30", "C3"},
	}
}

func open(t *testing.T, ws *stub, opts ...Option) *DataSheet {
	t.Helper()

	d, err := Open(context.Background(), ws, opts...)
	require.NoError(t, err)

	return d
}

func cell(ref string, v any) *sheets.ValueRange {
	return &sheets.ValueRange{
		Range:  ref,
		Values: [][]any{{v}},
	}
}

func TestOpen(t *testing.T) {
	d := open(t, &stub{values: fixture()})

	assert.Equal(t, []string{"col_a", "col_b", "col_c", "col_d"}, d.Names())
	assert.Equal(t, 3, d.Nrow())
	assert.Equal(t, 4, d.Ncol())

	v, err := d.Value(0, "col_c")
	require.NoError(t, err)
	assert.Equal(t, 10, v)

	v, err = d.Value(1, "col_d")
	require.NoError(t, err)
	assert.Equal(t, "", v)
}

func TestOpenWithoutTypeDetection(t *testing.T) {
	d := open(t, &stub{values: fixture()}, WithTypeDetection(false))

	v, err := d.Value(0, "col_c")
	require.NoError(t, err)
	assert.Equal(t, "10", v)
}

func TestOpenWithShortRows(t *testing.T) {
	values := fixture()
	values = append(values, []any{"A4"}, []any{})

	d := open(t, &stub{values: values})

	assert.Equal(t, 5, d.Nrow())

	v, err := d.Value(3, "col_b")
	require.NoError(t, err)
	assert.Equal(t, "", v)

	v, err = d.Value(4, "col_c")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestOpenWithHeaderOnly(t *testing.T) {
	d := open(t, &stub{values: [][]any{{"col_a", "col_b"}}})

	assert.Equal(t, []string{"col_a", "col_b"}, d.Names())
	assert.Equal(t, 0, d.Nrow())
}

func TestOpenWithEmptySheet(t *testing.T) {
	_, err := Open(context.Background(), &stub{})

	assert.Error(t, err)
}

func TestOpenWithDuplicatedColumn(t *testing.T) {
	values := [][]any{
		{"col_a", "col_b", "Col A"},
		{"1", "2", "3"},
	}

	_, err := Open(context.Background(), &stub{values: values})

	assert.Error(t, err)
}

func TestOpenWithBlankColumnName(t *testing.T) {
	values := [][]any{
		{"col_a", "", "col_c"},
	}

	_, err := Open(context.Background(), &stub{values: values})

	assert.Error(t, err)
}

func TestUpdateWithNoChanges(t *testing.T) {
	ws := stub{values: fixture()}
	d := open(t, &ws)
	before := Values(d.Frame())

	err := d.Update(context.Background(), func(c *Change) error {
		return nil
	})

	require.NoError(t, err)
	assert.Empty(t, ws.calls)
	assert.Equal(t, before, Values(d.Frame()))
}

func TestUpdateSingleCell(t *testing.T) {
	ws := stub{values: fixture()}
	d := open(t, &ws)

	err := d.Update(context.Background(), func(c *Change) error {
		return c.Set(1, "col_b", "Updated B2")
	})

	require.NoError(t, err)
	require.Len(t, ws.calls, 1)

	expected := []*sheets.ValueRange{cell("B3", "Updated B2")}
	if diff := cmp.Diff(expected, ws.calls[0]); diff != "" {
		t.Errorf("incorrect update payload (-expected +got):\n%s", diff)
	}

	v, _ := d.Value(1, "col_b")
	assert.Equal(t, "Updated B2", v)
}

func TestUpdateMultipleCells(t *testing.T) {
	ws := stub{values: fixture()}
	d := open(t, &ws)

	err := d.Update(context.Background(), func(c *Change) error {
		if err := c.Set(0, "col_c", 99); err != nil {
			return err
		}

		return c.Set(2, "col_d", "New D3")
	})

	require.NoError(t, err)
	require.Len(t, ws.calls, 1)

	expected := []*sheets.ValueRange{
		cell("C2", 99),
		cell("D4", "New D3"),
	}

	if diff := cmp.Diff(expected, ws.calls[0]); diff != "" {
		t.Errorf("incorrect update payload (-expected +got):\n%s", diff)
	}

	v, _ := d.Value(0, "col_c")
	assert.Equal(t, 99, v)

	v, _ = d.Value(2, "col_d")
	assert.Equal(t, "New D3", v)
}

func TestUpdateWithApply(t *testing.T) {
	ws := stub{values: fixture()}
	d := open(t, &ws)

	edits := dataframe.New(series.New([]string{"UPDATED B1"}, series.String, "col_b"))

	err := d.Update(context.Background(), func(c *Change) error {
		return c.Apply(edits, 0)
	})

	require.NoError(t, err)
	require.Len(t, ws.calls, 1)
	assert.Equal(t, []*sheets.ValueRange{cell("B2", "UPDATED B1")}, ws.calls[0])

	v, _ := d.Value(0, "col_b")
	assert.Equal(t, "UPDATED B1", v)
}

func TestApplyIgnoresNAAndUnknownColumns(t *testing.T) {
	ws := stub{values: fixture()}
	d := open(t, &ws)

	edits := dataframe.New(
		series.New([]string{"NaN", "77"}, series.Int, "col_c"),
		series.New([]string{"x", "y"}, series.String, "col_z"))

	change := d.StartUpdate()

	require.NoError(t, change.Apply(edits))
	assert.Equal(t, []*sheets.ValueRange{cell("C3", 77)}, change.Pending())
}

func TestApplyWithMismatchedRowIndex(t *testing.T) {
	d := open(t, &stub{values: fixture()})

	edits := dataframe.New(series.New([]string{"x"}, series.String, "col_b"))

	assert.Error(t, d.StartUpdate().Apply(edits, 0, 1))
}

func TestPendingEmptyToValue(t *testing.T) {
	d := open(t, &stub{values: fixture()})
	change := d.StartUpdate()

	require.NoError(t, change.Set(1, "col_d", "Now Has Value"))
	assert.Equal(t, []*sheets.ValueRange{cell("D3", "Now Has Value")}, change.Pending())
}

func TestPendingValueToEmpty(t *testing.T) {
	d := open(t, &stub{values: fixture()})
	change := d.StartUpdate()

	require.NoError(t, change.Set(2, "col_d", ""))
	assert.Equal(t, []*sheets.ValueRange{cell("D4", "")}, change.Pending())
}

func TestPendingValueToNA(t *testing.T) {
	d := open(t, &stub{values: fixture()})
	change := d.StartUpdate()

	require.NoError(t, change.Set(0, "col_c", nil))
	assert.Equal(t, []*sheets.ValueRange{cell("C2", "")}, change.Pending())
}

func TestPendingWithInPlaceEdit(t *testing.T) {
	d := open(t, &stub{values: fixture()})
	change := d.StartUpdate()

	change.Frame().Elem(2, 0).Set("edited")

	assert.Equal(t, []*sheets.ValueRange{cell("A4", "edited")}, change.Pending())
}

func TestUpdateWithErrorInsideUpdate(t *testing.T) {
	ws := stub{values: fixture()}
	d := open(t, &ws)
	before := Values(d.Frame())
	expected := errors.New("something went wrong inside")

	err := d.Update(context.Background(), func(c *Change) error {
		c.Set(0, "col_b", "this change won't happen")
		return expected
	})

	assert.ErrorIs(t, err, expected)
	assert.Empty(t, ws.calls)
	assert.Equal(t, before, Values(d.Frame()))
}

func TestUpdateWhenWorksheetUpdateFails(t *testing.T) {
	ws := stub{
		values: fixture(),
		err:    errors.New("API limit reached"),
	}

	d := open(t, &ws)
	before := Values(d.Frame())

	err := d.Update(context.Background(), func(c *Change) error {
		return c.Set(0, "col_b", "Change that fails")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ws.err)
	require.Len(t, ws.calls, 1)
	assert.Equal(t, []*sheets.ValueRange{cell("B2", "Change that fails")}, ws.calls[0])
	assert.Equal(t, before, Values(d.Frame()))
}

func TestCommitRetryAfterFailure(t *testing.T) {
	ws := stub{
		values: fixture(),
		err:    errors.New("API limit reached"),
	}

	d := open(t, &ws)
	change := d.StartUpdate()

	require.NoError(t, change.Set(0, "col_b", "retried"))
	require.Error(t, change.Commit(context.Background()))

	ws.err = nil

	require.NoError(t, change.Commit(context.Background()))
	assert.Len(t, ws.calls, 2)

	v, _ := d.Value(0, "col_b")
	assert.Equal(t, "retried", v)
}

func TestUpdateIgnoresDroppedAndRenamedColumns(t *testing.T) {
	ws := stub{values: fixture()}
	d := open(t, &ws)

	err := d.Update(context.Background(), func(c *Change) error {
		if err := c.Set(0, "col_b", "Valid Change"); err != nil {
			return err
		}

		return c.Replace(c.Frame().Drop("col_c").Rename("col_d_new", "col_d"))
	})

	require.NoError(t, err)
	require.Len(t, ws.calls, 1)
	assert.Equal(t, []*sheets.ValueRange{cell("B2", "Valid Change")}, ws.calls[0])

	v, _ := d.Value(0, "col_b")
	assert.Equal(t, "Valid Change", v)

	v, _ = d.Value(0, "col_c")
	assert.Equal(t, 10, v)
}

func TestSetWithIncompatibleValue(t *testing.T) {
	d := open(t, &stub{values: fixture()})
	change := d.StartUpdate()

	err := change.Set(0, "col_c", "not a number")

	assert.ErrorIs(t, err, ErrType)
	assert.Empty(t, change.Pending())

	v, _ := change.Get(0, "col_c")
	assert.Equal(t, 10, v)
}

func TestSetWithInvalidCell(t *testing.T) {
	change := open(t, &stub{values: fixture()}).StartUpdate()

	assert.ErrorIs(t, change.Set(0, "col_x", "x"), ErrNoSuchColumn)
	assert.ErrorIs(t, change.Set(3, "col_a", "x"), ErrRowRange)
	assert.ErrorIs(t, change.Set(-1, "col_a", "x"), ErrRowRange)
}

func TestCommitAfterCommit(t *testing.T) {
	ws := stub{values: fixture()}
	change := open(t, &ws).StartUpdate()

	require.NoError(t, change.Set(0, "col_a", "x"))
	require.NoError(t, change.Commit(context.Background()))

	assert.ErrorIs(t, change.Commit(context.Background()), ErrClosed)
	assert.ErrorIs(t, change.Discard(), ErrClosed)
	assert.Len(t, ws.calls, 1)
}

func TestDiscard(t *testing.T) {
	ws := stub{values: fixture()}
	change := open(t, &ws).StartUpdate()

	require.NoError(t, change.Set(0, "col_a", "x"))
	require.NoError(t, change.Discard())

	assert.ErrorIs(t, change.Commit(context.Background()), ErrClosed)
	assert.Empty(t, ws.calls)
}

func TestCommitWithConflict(t *testing.T) {
	remote := fixture()
	remote[2][1] = "B2 edited by someone else"

	ws := stub{values: fixture(), remote: remote}
	d := open(t, &ws, WithConflictCheck())
	before := Values(d.Frame())

	err := d.Update(context.Background(), func(c *Change) error {
		return c.Set(1, "col_b", "Updated B2")
	})

	var conflict *ConflictError

	require.ErrorAs(t, err, &conflict)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, []Conflict{{Range: "B3", Local: "B2", Remote: "B2 edited by someone else", Update: "Updated B2"}}, conflict.Cells)
	assert.Empty(t, ws.calls)
	assert.Equal(t, before, Values(d.Frame()))
}

func TestCommitWithUnrelatedRemoteEdit(t *testing.T) {
	remote := fixture()
	remote[3][3] = "D4 edited by someone else"
	remote[1][2] = "10.0"

	ws := stub{values: fixture(), remote: remote}
	d := open(t, &ws, WithConflictCheck())

	err := d.Update(context.Background(), func(c *Change) error {
		if err := c.Set(0, "col_c", 11); err != nil {
			return err
		}

		return c.Set(1, "col_b", "Updated B2")
	})

	require.NoError(t, err)
	assert.Len(t, ws.calls, 1)
}

func TestCommitWithMovedColumn(t *testing.T) {
	remote := [][]any{
		{"col_a", "col_x", "col_b", "col_c", "col_d"},
		{"A1", "", "B1", "10", "C1"},
		{"A2", "", "B2", "20", ""},
		{"A3", "", "B3", "30", "C3"},
	}

	ws := stub{values: fixture(), remote: remote}
	d := open(t, &ws, WithConflictCheck())

	err := d.Update(context.Background(), func(c *Change) error {
		return c.Set(1, "col_b", "Updated B2")
	})

	assert.ErrorIs(t, err, ErrConflict)
	assert.Empty(t, ws.calls)
}

func TestRefresh(t *testing.T) {
	ws := stub{values: fixture()}
	d := open(t, &ws)

	ws.values = fixture()
	ws.values[1][0] = "edited in sheet"

	require.NoError(t, d.Refresh(context.Background()))

	v, _ := d.Value(0, "col_a")
	assert.Equal(t, "edited in sheet", v)
}

func TestNew(t *testing.T) {
	ws := stub{}
	frame := dataframe.New(
		series.New([]string{"x", "y"}, series.String, "name"),
		series.New([]int{1, 2}, series.Int, "count"))

	d := New(&ws, frame)

	err := d.Update(context.Background(), func(c *Change) error {
		return c.Set(1, "count", 3)
	})

	require.NoError(t, err)
	require.Len(t, ws.calls, 1)
	assert.Equal(t, []*sheets.ValueRange{cell("B3", 3)}, ws.calls[0])

	// ... snapshot is untouched
	assert.Equal(t, "2", frame.Elem(1, 1).String())
}

func TestChanges(t *testing.T) {
	d := open(t, &stub{values: fixture()})
	change := d.StartUpdate()

	require.NoError(t, change.Set(0, "col_c", 99))
	require.NoError(t, change.Set(2, "col_d", "New D3"))

	expected := []CellChange{
		{Range: "C2", Row: 0, Column: "col_c", From: 10, To: 99},
		{Range: "D4", Row: 2, Column: "col_d", From: "C3", To: "New D3"},
	}

	assert.Equal(t, expected, change.Changes())
}

func TestApplyByKey(t *testing.T) {
	d := open(t, &stub{values: fixture()})

	edits := dataframe.New(
		series.New([]string{"A3", "A1"}, series.String, "col_a"),
		series.New([]string{"B3 edited", "B1"}, series.String, "col_b"))

	change := d.StartUpdate()

	require.NoError(t, change.ApplyByKey(edits, "col_a"))
	assert.Equal(t, []*sheets.ValueRange{cell("B4", "B3 edited")}, change.Pending())
}

func TestApplyByKeyWithUnknownKey(t *testing.T) {
	d := open(t, &stub{values: fixture()})

	edits := dataframe.New(
		series.New([]string{"A9"}, series.String, "col_a"),
		series.New([]string{"x"}, series.String, "col_b"))

	assert.ErrorIs(t, d.StartUpdate().ApplyByKey(edits, "col_a"), ErrRowRange)
	assert.ErrorIs(t, d.StartUpdate().ApplyByKey(edits, "col_x"), ErrNoSuchColumn)
}

func TestApplyByKeyWithAmbiguousKey(t *testing.T) {
	values := fixture()
	values[3][0] = "A1"

	d := open(t, &stub{values: values})

	edits := dataframe.New(
		series.New([]string{"A1"}, series.String, "col_a"),
		series.New([]string{"x"}, series.String, "col_b"))

	assert.Error(t, d.StartUpdate().ApplyByKey(edits, "col_a"))
}

func TestSetEmptyStringClearsNumericCell(t *testing.T) {
	d := open(t, &stub{values: fixture()})
	change := d.StartUpdate()

	require.NoError(t, change.Set(0, "col_c", ""))
	assert.Equal(t, []*sheets.ValueRange{cell("C2", "")}, change.Pending())
}

func TestApplyWithStringFrame(t *testing.T) {
	d := open(t, &stub{values: fixture()})

	edits, err := makeFrame([][]any{
		{"col_a", "col_b", "col_c", "col_d"},
		{"A1", "B1", "10", "C1"},
		{"A2", "B2", "21", ""},
		{"A3", "B3", "", "C3"},
	}, false)

	require.NoError(t, err)

	change := d.StartUpdate()

	require.NoError(t, change.Apply(edits))
	assert.Equal(t, []*sheets.ValueRange{cell("C3", 21), cell("C4", "")}, change.Pending())
}

func TestSetFloatInIntColumn(t *testing.T) {
	ws := stub{values: fixture()}
	d := open(t, &ws)
	change := d.StartUpdate()

	require.NoError(t, change.Set(1, "col_c", 99.5))
	assert.Equal(t, []*sheets.ValueRange{cell("C3", 99.5)}, change.Pending())

	require.NoError(t, change.Commit(context.Background()))

	v, err := d.Value(1, "col_c")
	require.NoError(t, err)
	assert.Equal(t, 99.5, v)

	v, err = d.Value(0, "col_c")
	require.NoError(t, err)
	assert.Equal(t, 10.0, v)

	// ... a later update sees no difference in the unchanged cells
	assert.Empty(t, d.StartUpdate().Pending())
}

func TestSetIntegralFloatInIntColumn(t *testing.T) {
	change := open(t, &stub{values: fixture()}).StartUpdate()

	require.NoError(t, change.Set(0, "col_c", 12.0))
	require.NoError(t, change.Set(2, "col_c", "31.0"))

	assert.Equal(t, []*sheets.ValueRange{cell("C2", 12), cell("C4", 31)}, change.Pending())
	assert.Equal(t, series.Int, change.Frame().Col("col_c").Type())
}

func TestApplyFractionalStringToIntColumn(t *testing.T) {
	d := open(t, &stub{values: fixture()})

	edits, err := makeFrame([][]any{
		{"col_a", "col_c"},
		{"A1", "1.5"},
	}, false)

	require.NoError(t, err)

	change := d.StartUpdate()

	require.NoError(t, change.Apply(edits))
	assert.Equal(t, []*sheets.ValueRange{cell("C2", 1.5)}, change.Pending())
}

func TestConcurrentUpdates(t *testing.T) {
	ws := stub{values: fixture()}
	d := open(t, &ws)

	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(2)

		go func(i int) {
			defer wg.Done()

			err := d.Update(context.Background(), func(c *Change) error {
				return c.Set(i%3, "col_a", fmt.Sprintf("x%d", i))
			})

			assert.NoError(t, err)
		}(i)

		go func() {
			defer wg.Done()

			assert.NoError(t, d.Refresh(context.Background()))
			assert.Equal(t, 3, d.Frame().Nrow())

			_, err := d.Value(0, "col_c")
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	assert.Len(t, ws.calls, 8)
}

func TestMergeKeepsWorksheetEdits(t *testing.T) {
	base, err := makeFrame(fixture(), false)
	require.NoError(t, err)

	// ... D3 edited in the worksheet after base was read
	values := fixture()
	values[2][3] = "blocked"

	edits := fixture()
	edits[1][1] = "B1 edited"

	frame, err := makeFrame(edits, false)
	require.NoError(t, err)

	change := open(t, &stub{values: values}).StartUpdate()

	require.NoError(t, change.Merge(base, frame, ""))
	assert.Equal(t, []*sheets.ValueRange{cell("B2", "B1 edited")}, change.Pending())
}

func TestMergeWithConflict(t *testing.T) {
	base, err := makeFrame(fixture(), false)
	require.NoError(t, err)

	values := fixture()
	values[2][3] = "blocked"

	edits := fixture()
	edits[1][1] = "B1 edited"
	edits[2][3] = "in progress"

	frame, err := makeFrame(edits, false)
	require.NoError(t, err)

	change := open(t, &stub{values: values}).StartUpdate()

	err = change.Merge(base, frame, "")

	var conflict *ConflictError

	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []Conflict{{Range: "D3", Local: "", Remote: "blocked", Update: "in progress"}}, conflict.Cells)
	assert.Empty(t, change.Pending())
}

func TestMergeWithSameEditInWorksheet(t *testing.T) {
	base, err := makeFrame(fixture(), false)
	require.NoError(t, err)

	values := fixture()
	values[2][3] = "done"

	edits := fixture()
	edits[2][3] = "done"

	frame, err := makeFrame(edits, false)
	require.NoError(t, err)

	change := open(t, &stub{values: values}).StartUpdate()

	require.NoError(t, change.Merge(base, frame, ""))
	assert.Empty(t, change.Pending())
}

func TestMergeByKey(t *testing.T) {
	base, err := makeFrame(fixture(), false)
	require.NoError(t, err)

	// ... a row inserted at the top of the worksheet and C2 edited
	values := [][]any{
		{"col_a", "col_b", "col_c", "col_d"},
		{"A0", "B0", "0", "C0"},
		{"A1", "B1", "11", "C1"},
		{"A2", "B2", "20", ""},
		{"A3", "B3", "30", "C3"},
	}

	frame, err := makeFrame([][]any{
		{"col_a", "col_c", "col_d"},
		{"A3", "30", "done"},
		{"A1", "10", "C1"},
	}, false)

	require.NoError(t, err)

	change := open(t, &stub{values: values}).StartUpdate()

	require.NoError(t, change.Merge(base, frame, "col_a"))
	assert.Equal(t, []*sheets.ValueRange{cell("D5", "done")}, change.Pending())
}

func TestOpenWithNaNText(t *testing.T) {
	values := fixture()
	values[1][3] = "NaN"

	d := open(t, &stub{values: values})

	v, err := d.Value(0, "col_d")
	require.NoError(t, err)
	assert.Nil(t, v)
}
