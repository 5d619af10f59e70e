package commands

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"google.golang.org/api/sheets/v4"

	"github.com/iter8-sheets/iter8/datasheet"
)

var PutCmd = Put{
	file:  "",
	clear: false,
}

// Put uploads a TSV file to a worksheet, replacing the cells from A1.
type Put struct {
	command
	file  string
	clear bool
}

func (cmd *Put) Name() string {
	return "put"
}

func (cmd *Put) Description() string {
	return "Uploads a TSV file to a Google Sheets worksheet"
}

func (cmd *Put) Usage() string {
	return "--credentials <file> --url <url> [--worksheet <title>] --file <file>"
}

func (cmd *Put) Help() {
	fmt.Println()
	fmt.Printf("  Usage: %s [--debug] put [options] --url <URL> --worksheet <title> --file <file>\n", APP)
	fmt.Println()
	fmt.Println("  Uploads a TSV file to a Google Sheets worksheet, starting at cell A1")
	fmt.Println()

	helpOptions(cmd.FlagSet())

	fmt.Println()
	fmt.Println("  Examples:")
	fmt.Println(`    iter8 --debug put --credentials "credentials.json" \`)
	fmt.Println(`                      --url "https://docs.google.com/spreadsheets/d/1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms" \`)
	fmt.Println(`                      --worksheet "Tasks" \`)
	fmt.Println(`                      --file "tasks.tsv"`)
	fmt.Println()
}

func (cmd *Put) FlagSet() *flag.FlagSet {
	flagset := cmd.flagset("put")

	flagset.StringVar(&cmd.file, "file", cmd.file, "TSV file")
	flagset.BoolVar(&cmd.clear, "clear", cmd.clear, "Clears the worksheet before uploading")

	return flagset
}

func (cmd *Put) Execute(args ...any) error {
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

	f, err := os.Open(cmd.file)
	if err != nil {
		return err
	}

	defer f.Close()

	frame, err := datasheet.ReadTSV(f, false)
	if err != nil {
		return fmt.Errorf("invalid TSV file (%w)", err)
	}

	google, spreadsheet, err := cmd.connect(ctx, SHEETS)
	if err != nil {
		return err
	}

	worksheet, err := cmd.open(ctx, google, spreadsheet)
	if err != nil {
		return err
	}

	area := fmt.Sprintf("'%s'", strings.ReplaceAll(worksheet.Title(), "'", "''"))

	if cmd.clear {
		if err := clear(google, spreadsheet, []string{area}, ctx); err != nil {
			return fmt.Errorf("error clearing worksheet (%w)", err)
		}
	}

	rq := sheets.BatchUpdateValuesRequest{
		ValueInputOption: datasheet.USER_ENTERED,
		Data: []*sheets.ValueRange{
			&sheets.ValueRange{
				Range:  area + "!A1",
				Values: datasheet.Values(frame),
			},
		},
	}

	if _, err := google.Spreadsheets.Values.BatchUpdate(spreadsheet, &rq).Context(ctx).Do(); err != nil {
		return err
	}

	infof("Uploaded TSV file %v to worksheet '%v'", cmd.file, worksheet.Title())

	return nil
}
