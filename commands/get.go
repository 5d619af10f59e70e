package commands

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"

	"github.com/iter8-sheets/iter8/datasheet"
)

var GetCmd = Get{
	file:   time.Now().Format("2006-01-02T150405.tsv"),
	detect: false,
}

// Get downloads a worksheet to a TSV file.
type Get struct {
	command
	file   string
	detect bool
}

func (cmd *Get) Name() string {
	return "get"
}

func (cmd *Get) Description() string {
	return "Retrieves a Google Sheets worksheet and stores it to a local TSV file"
}

func (cmd *Get) Usage() string {
	return "--credentials <file> --url <url> [--worksheet <title>] --file <file>"
}

func (cmd *Get) Help() {
	fmt.Println()
	fmt.Printf("  Usage: %s [--debug] get [options] --url <URL> --worksheet <title> --file <file>\n", APP)
	fmt.Println()
	fmt.Println("  Downloads a Google Sheets worksheet to a TSV file. A copy is kept as <file>.base.tsv so that")
	fmt.Println("  'diff' and 'update' can tell edited cells from cells changed in the worksheet in the meantime.")
	fmt.Println()

	helpOptions(cmd.FlagSet())

	fmt.Println()
	fmt.Println("  Examples:")
	fmt.Println(`    iter8 --debug get --credentials "credentials.json" \`)
	fmt.Println(`                      --url "https://docs.google.com/spreadsheets/d/1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms" \`)
	fmt.Println(`                      --worksheet "Tasks" \`)
	fmt.Println(`                      --file "tasks.tsv"`)
	fmt.Println()
}

func (cmd *Get) FlagSet() *flag.FlagSet {
	flagset := cmd.flagset("get")

	flagset.StringVar(&cmd.file, "file", cmd.file, "TSV file name. Defaults to '<yyyy-mm-ddTHHmmss>.tsv'")
	flagset.BoolVar(&cmd.detect, "detect-types", cmd.detect, "Normalises numeric and boolean columns")

	return flagset
}

func (cmd *Get) Execute(args ...any) error {
	ctx, err := cmd.setup(args...)
	if err != nil {
		return err
	}

	if err := cmd.validate(); err != nil {
		return err
	}

	if strings.TrimSpace(cmd.file) == "" {
		return fmt.Errorf("--file is a required option")
	}

	google, spreadsheet, err := cmd.connect(ctx, SHEETS_READONLY)
	if err != nil {
		return err
	}

	worksheet, err := cmd.open(ctx, google, spreadsheet)
	if err != nil {
		return err
	}

	sheet, err := datasheet.Open(ctx, worksheet,
		datasheet.WithTypeDetection(cmd.detect),
		datasheet.WithLogger(logger("datasheet")))
	if err != nil {
		return err
	}

	frame := sheet.Frame()

	for _, file := range []string{cmd.file, baseFile(cmd.file)} {
		if err := writeTSV(file, frame); err != nil {
			return err
		}
	}

	infof("Retrieved worksheet '%s' (%d rows) to file %s", worksheet.Title(), sheet.Nrow(), cmd.file)

	return nil
}

// writeTSV writes a dataframe to a temporary file and then renames it, so that
// an existing file is only replaced by a complete one.
func writeTSV(file string, frame dataframe.DataFrame) error {
	dir := filepath.Dir(file)
	if err := os.MkdirAll(dir, 0770); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".iter8-*.tsv")
	if err != nil {
		return err
	}

	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	if err := datasheet.WriteTSV(tmp, frame); err != nil {
		return fmt.Errorf("error creating TSV file (%w)", err)
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), file)
}
