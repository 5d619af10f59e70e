package datasheet

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-gota/gota/dataframe"
	"github.com/rs/zerolog"
)

// DataSheet is an in-memory dataframe snapshot of a worksheet. Edits are made
// to a copy of the snapshot inside an update (see StartUpdate and Update) and
// only the cells that changed are written back to the worksheet.
type DataSheet struct {
	mu        sync.Mutex
	worksheet Worksheet
	frame     dataframe.DataFrame
	detect    bool
	conflicts bool
	log       zerolog.Logger
}

type Option func(*DataSheet)

func WithLogger(log zerolog.Logger) Option {
	return func(d *DataSheet) {
		d.log = log
	}
}

// WithTypeDetection enables or disables detection of int, float and bool
// columns when loading a worksheet. Columns are strings when disabled.
func WithTypeDetection(detect bool) Option {
	return func(d *DataSheet) {
		d.detect = detect
	}
}

// WithConflictCheck re-reads the worksheet before every commit and refuses to
// overwrite cells that were modified since the snapshot was taken.
func WithConflictCheck() Option {
	return func(d *DataSheet) {
		d.conflicts = true
	}
}

// Open reads a worksheet into a new DataSheet. The first row of the worksheet
// is the header row.
func Open(ctx context.Context, worksheet Worksheet, opts ...Option) (*DataSheet, error) {
	d := newDataSheet(worksheet, opts...)

	if err := d.Refresh(ctx); err != nil {
		return nil, err
	}

	return d, nil
}

// New wraps an existing dataframe, which is assumed to mirror the worksheet
// with frame row 0 in sheet row 2.
func New(worksheet Worksheet, frame dataframe.DataFrame, opts ...Option) *DataSheet {
	d := newDataSheet(worksheet, opts...)
	d.frame = frame.Copy()

	return d
}

func newDataSheet(worksheet Worksheet, opts ...Option) *DataSheet {
	d := DataSheet{
		worksheet: worksheet,
		detect:    true,
		log:       zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(&d)
	}

	return &d
}

// Refresh replaces the snapshot with the current worksheet contents, picking
// up any edits made directly in the sheet.
func (d *DataSheet) Refresh(ctx context.Context) error {
	response, err := d.worksheet.Get(ctx)
	if err != nil {
		return err
	}

	if response == nil || len(response.Values) == 0 {
		return fmt.Errorf("no data in worksheet")
	}

	frame, err := makeFrame(response.Values, d.detect)
	if err != nil {
		return fmt.Errorf("error creating dataframe from worksheet (%w)", err)
	}

	d.mu.Lock()
	d.frame = frame
	d.mu.Unlock()

	d.log.Debug().Int("rows", frame.Nrow()).Int("columns", frame.Ncol()).Msg("loaded worksheet")

	return nil
}

// Frame returns a copy of the current snapshot.
func (d *DataSheet) Frame() dataframe.DataFrame {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.frame.Copy()
}

func (d *DataSheet) Names() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.frame.Names()
}

func (d *DataSheet) Nrow() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.frame.Nrow()
}

func (d *DataSheet) Ncol() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.frame.Ncol()
}

// Value returns the value of a single cell. NA cells are returned as nil.
func (d *DataSheet) Value(row int, column string) (any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return get(d.frame, row, column)
}

// StartUpdate begins an update. The returned Change holds a private copy of
// the snapshot which may be edited freely and then committed or discarded.
func (d *DataSheet) StartUpdate() *Change {
	d.mu.Lock()
	defer d.mu.Unlock()

	return &Change{
		sheet: d,
		base:  d.frame.Copy(),
		frame: d.frame.Copy(),
	}
}

// Update runs f against a new Change and commits it if f returns without
// error. Nothing is written if f fails.
func (d *DataSheet) Update(ctx context.Context, f func(*Change) error) error {
	change := d.StartUpdate()

	if err := f(change); err != nil {
		change.Discard()
		return err
	}

	return change.Commit(ctx)
}

func get(frame dataframe.DataFrame, row int, column string) (any, error) {
	col := columnIndex(frame, column)
	if col < 0 {
		return nil, fmt.Errorf("%w: '%s'", ErrNoSuchColumn, column)
	}

	if row < 0 || row >= frame.Nrow() {
		return nil, fmt.Errorf("%w: %d", ErrRowRange, row)
	}

	e := frame.Elem(row, col)
	if e.IsNA() {
		return nil, nil
	}

	return cellValue(e), nil
}
