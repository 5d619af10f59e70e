package commands

import (
	"flag"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/iter8-sheets/iter8/datasheet"
)

var UpdateCmd = Update{
	edits: edits{
		file:   "",
		base:   "",
		key:    "",
		detect: true,
	},
	conflicts: true,
	dryrun:    false,
	logRange:  "",
}

// Update writes the cells changed in an edited TSV file back to a worksheet,
// leaving every other cell untouched.
type Update struct {
	command
	edits
	conflicts bool
	dryrun    bool
	logRange  string
}

func (cmd *Update) Name() string {
	return "update"
}

func (cmd *Update) Description() string {
	return "Updates the worksheet cells changed in an edited TSV file"
}

func (cmd *Update) Usage() string {
	return "--credentials <file> --url <url> [--worksheet <title>] --file <file>"
}

func (cmd *Update) Help() {
	fmt.Println()
	fmt.Printf("  Usage: %s [--debug] update [options] --url <URL> --worksheet <title> --file <file>\n", APP)
	fmt.Println()
	fmt.Println("  Writes the cells that differ between an edited TSV file and a Google Sheets worksheet back")
	fmt.Println("  to the worksheet. Cells that were not edited are never rewritten so concurrent edits made")
	fmt.Println("  directly in the worksheet are preserved. A cell edited both in the file and in the worksheet")
	fmt.Println("  since it was retrieved (see --base) is reported as a conflict and nothing is updated.")
	fmt.Println()

	helpOptions(cmd.FlagSet())

	fmt.Println()
	fmt.Println("  Examples:")
	fmt.Println(`    iter8 update --credentials "credentials.json" \`)
	fmt.Println(`                 --url "https://docs.google.com/spreadsheets/d/1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms" \`)
	fmt.Println(`                 --worksheet "Tasks" --key "ID" --file "tasks.tsv" \`)
	fmt.Println(`                 --log-range "Log!A1:D"`)
	fmt.Println()
}

func (cmd *Update) FlagSet() *flag.FlagSet {
	flagset := cmd.flagset("update")

	cmd.edits.flags(flagset)

	flagset.BoolVar(&cmd.conflicts, "check-conflicts", cmd.conflicts, "Refuses to overwrite cells that were changed in the worksheet after it was read")
	flagset.BoolVar(&cmd.dryrun, "dry-run", cmd.dryrun, "Lists the changes without updating the worksheet")
	flagset.StringVar(&cmd.logRange, "log-range", cmd.logRange, "Optional spreadsheet range for logging updates e.g. 'Log!A1:D'")

	return flagset
}

func (cmd *Update) Execute(args ...any) error {
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

	if cmd.logRange != "" {
		if match := regexp.MustCompile(`(.+?)!.*`).FindStringSubmatch(strings.TrimSpace(cmd.logRange)); len(match) < 2 {
			return fmt.Errorf("invalid log-range '%s' - expected something like 'Log!A1:D'", cmd.logRange)
		}
	}

	google, spreadsheet, err := cmd.connect(ctx, SHEETS)
	if err != nil {
		return err
	}

	worksheet, err := cmd.open(ctx, google, spreadsheet)
	if err != nil {
		return err
	}

	opts := []datasheet.Option{}
	if cmd.conflicts {
		opts = append(opts, datasheet.WithConflictCheck())
	}

	_, change, err := cmd.edits.stage(ctx, worksheet, opts...)
	if err != nil {
		warnConflicts(err)
		return err
	}

	changes := change.Changes()

	if cmd.dryrun || cmd.debug {
		printChanges(os.Stdout, changes)
	}

	if cmd.dryrun {
		change.Discard()
		return nil
	}

	if err := change.Commit(ctx); err != nil {
		warnConflicts(err)
		return err
	}

	infof("Updated %d cells in worksheet '%s'", len(changes), worksheet.Title())

	if cmd.logRange != "" && len(changes) > 0 {
		entry := logEntry{
			timestamp: time.Now(),
			worksheet: worksheet.Title(),
			cells:     len(changes),
			source:    cmd.file,
		}

		if err := appendLog(google, spreadsheet, cmd.logRange, entry, ctx); err != nil {
			return err
		}
	}

	return nil
}
