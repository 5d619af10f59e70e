package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/go-gota/gota/dataframe"

	"github.com/iter8-sheets/iter8/datasheet"
)

var DiffCmd = Diff{
	edits: edits{
		file:   "",
		base:   "",
		key:    "",
		detect: true,
	},
	report: "",
}

// Diff lists the cells that an edited TSV file would change in a worksheet.
type Diff struct {
	command
	edits
	report string
}

type edits struct {
	file   string
	base   string
	key    string
	detect bool
}

func (cmd *Diff) Name() string {
	return "diff"
}

func (cmd *Diff) Description() string {
	return "Lists the worksheet cells that would be changed by an edited TSV file"
}

func (cmd *Diff) Usage() string {
	return "--credentials <file> --url <url> [--worksheet <title>] --file <file>"
}

func (cmd *Diff) Help() {
	fmt.Println()
	fmt.Printf("  Usage: %s [--debug] diff [options] --url <URL> --worksheet <title> --file <file>\n", APP)
	fmt.Println()
	fmt.Println("  Compares an edited TSV file with a Google Sheets worksheet and lists the cells that differ.")
	fmt.Println()

	helpOptions(cmd.FlagSet())

	fmt.Println()
	fmt.Println("  Examples:")
	fmt.Println(`    iter8 diff --credentials "credentials.json" \`)
	fmt.Println(`               --url "https://docs.google.com/spreadsheets/d/1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms" \`)
	fmt.Println(`               --worksheet "Tasks" --key "ID" --file "tasks.tsv" \`)
	fmt.Println(`               --report-range "Audit!A1:D"`)
	fmt.Println()
}

func (cmd *Diff) FlagSet() *flag.FlagSet {
	flagset := cmd.flagset("diff")

	cmd.edits.flags(flagset)

	flagset.StringVar(&cmd.report, "report-range", cmd.report, "Optional spreadsheet range for a report of the changes e.g. 'Audit!A1:D'")

	return flagset
}

func (cmd *Diff) Execute(args ...any) error {
	ctx, err := cmd.setup(args...)
	if err != nil {
		return err
	}

	if err := cmd.validate(); err != nil {
		return err
	}

	if err := cmd.edits.check(); err != nil {
		return err
	}

	if cmd.report != "" {
		if _, err := buildReportFormat(cmd.report); err != nil {
			return err
		}
	}

	scope := SHEETS_READONLY
	if cmd.report != "" {
		scope = SHEETS
	}

	google, spreadsheet, err := cmd.connect(ctx, scope)
	if err != nil {
		return err
	}

	worksheet, err := cmd.open(ctx, google, spreadsheet)
	if err != nil {
		return err
	}

	_, change, err := cmd.edits.stage(ctx, worksheet)
	if err != nil {
		warnConflicts(err)
		return err
	}

	defer change.Discard()

	changes := change.Changes()

	printChanges(os.Stdout, changes)

	if cmd.report != "" {
		if err := writeReport(google, spreadsheet, cmd.report, changes, ctx); err != nil {
			return err
		}
	}

	return nil
}

func (e *edits) flags(flagset *flag.FlagSet) {
	flagset.StringVar(&e.file, "file", e.file, "TSV file with the edited worksheet")
	flagset.StringVar(&e.base, "base", e.base, "TSV file with the worksheet as retrieved before editing. Defaults to the <file>.base.tsv written by 'get'")
	flagset.StringVar(&e.key, "key", e.key, "Column used to match edited rows to worksheet rows. Defaults to matching rows by position")
	flagset.BoolVar(&e.detect, "detect-types", e.detect, "Detects numeric and boolean worksheet columns")
}

func (e *edits) check() error {
	if strings.TrimSpace(e.file) == "" {
		return fmt.Errorf("--file is a required option")
	}

	return nil
}

// stage loads the worksheet and applies the edits file to a new change. If
// the worksheet as it was before editing is available only the edited cells
// are applied, otherwise every cell in the edits file is applied.
func (e *edits) stage(ctx context.Context, worksheet datasheet.Worksheet, opts ...datasheet.Option) (*datasheet.DataSheet, *datasheet.Change, error) {
	frame, err := readTSV(e.file)
	if err != nil {
		return nil, nil, err
	}

	base, ok, err := e.original()
	if err != nil {
		return nil, nil, err
	}

	opts = append([]datasheet.Option{
		datasheet.WithTypeDetection(e.detect),
		datasheet.WithLogger(logger("datasheet")),
	}, opts...)

	sheet, err := datasheet.Open(ctx, worksheet, opts...)
	if err != nil {
		return nil, nil, err
	}

	key := strings.TrimSpace(e.key)
	change := sheet.StartUpdate()

	switch {
	case ok:
		err = change.Merge(base, frame, key)

	case key != "":
		warnf("No base file for %s - applying all cells", e.file)
		err = change.ApplyByKey(frame, key)

	case frame.Nrow() > sheet.Nrow():
		err = fmt.Errorf("TSV file has %d rows, worksheet has %d", frame.Nrow(), sheet.Nrow())

	default:
		warnf("No base file for %s - applying all cells", e.file)
		err = change.Apply(frame)
	}

	if err != nil {
		change.Discard()
		return nil, nil, err
	}

	return sheet, change, nil
}

// original loads the base TSV file, if any.
func (e *edits) original() (dataframe.DataFrame, bool, error) {
	file := strings.TrimSpace(e.base)
	if file == "" {
		file = baseFile(e.file)
		if _, err := os.Stat(file); errors.Is(err, fs.ErrNotExist) {
			return dataframe.DataFrame{}, false, nil
		}
	}

	frame, err := readTSV(file)
	if err != nil {
		return dataframe.DataFrame{}, false, err
	}

	return frame, true, nil
}

func readTSV(file string) (dataframe.DataFrame, error) {
	f, err := os.Open(file)
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	defer f.Close()

	frame, err := datasheet.ReadTSV(f, false)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("invalid TSV file %s (%w)", file, err)
	}

	return frame, nil
}

// baseFile returns the name of the copy of a retrieved worksheet kept for
// merging edits e.g. tasks.tsv -> tasks.base.tsv
func baseFile(file string) string {
	ext := filepath.Ext(file)

	return strings.TrimSuffix(file, ext) + ".base" + ext
}

func warnConflicts(err error) {
	var conflict *datasheet.ConflictError
	if errors.As(err, &conflict) {
		for _, c := range conflict.Cells {
			warnf("%v  changed in worksheet from '%v' to '%v'", c.Range, c.Local, c.Remote)
		}
	}
}

func printChanges(w io.Writer, changes []datasheet.CellChange) {
	if len(changes) == 0 {
		fmt.Fprintln(w, "No changes")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)

	fmt.Fprintln(tw, "CELL\tCOLUMN\tFROM\tTO")
	for _, c := range changes {
		fmt.Fprintf(tw, "%v\t%v\t%v\t%v\n", c.Range, c.Column, datasheet.FormatValue(c.From), datasheet.FormatValue(c.To))
	}

	tw.Flush()
}
