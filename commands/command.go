package commands

import (
	"context"
	"flag"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/iter8-sheets/iter8/datasheet"
)

const APP = "iter8"

const (
	SHEETS          = "https://www.googleapis.com/auth/spreadsheets"
	SHEETS_READONLY = "https://www.googleapis.com/auth/spreadsheets.readonly"
)

// Options holds the global command line options passed to every command.
type Options struct {
	Config string
	Debug  bool
}

type command struct {
	workdir     string
	credentials string
	tokens      string
	url         string
	worksheet   string
	debug       bool

	conf *Config
}

func (cmd *command) flagset(name string) *flag.FlagSet {
	flagset := flag.NewFlagSet(name, flag.ExitOnError)

	flagset.StringVar(&cmd.workdir, "workdir", cmd.workdir, "Directory for working files (tokens, etc)")
	flagset.StringVar(&cmd.credentials, "credentials", cmd.credentials, "Path for the 'credentials.json' file")
	flagset.StringVar(&cmd.tokens, "tokens", cmd.tokens, "Directory for the authorisation tokens. Defaults to <workdir>/.google")
	flagset.StringVar(&cmd.url, "url", cmd.url, "Spreadsheet URL")
	flagset.StringVar(&cmd.worksheet, "worksheet", cmd.worksheet, "Worksheet title. Defaults to the first worksheet in the spreadsheet")

	return flagset
}

// setup unpacks the Execute arguments, loads the configuration file and fills
// in any options not set on the command line.
func (cmd *command) setup(args ...any) (context.Context, error) {
	ctx := context.Background()
	options := Options{}

	for _, arg := range args {
		switch v := arg.(type) {
		case context.Context:
			ctx = v
		case *Options:
			if v != nil {
				options = *v
			}
		}
	}

	conf, err := LoadConfig(options.Config)
	if err != nil {
		return nil, err
	}

	cmd.conf = conf
	cmd.debug = options.Debug

	configureLogging(conf.LogLevel, cmd.debug)

	if strings.TrimSpace(cmd.workdir) == "" {
		cmd.workdir = conf.Workdir
	}

	if strings.TrimSpace(cmd.credentials) == "" {
		cmd.credentials = conf.Credentials
	}

	if strings.TrimSpace(cmd.url) == "" {
		cmd.url = conf.URL
	}

	if strings.TrimSpace(cmd.worksheet) == "" {
		cmd.worksheet = conf.Worksheet
	}

	if strings.TrimSpace(cmd.tokens) == "" {
		cmd.tokens = filepath.Join(cmd.workdir, ".google")
	}

	return ctx, nil
}

func (cmd *command) validate() error {
	if strings.TrimSpace(cmd.credentials) == "" {
		return fmt.Errorf("--credentials is a required option")
	}

	if strings.TrimSpace(cmd.url) == "" {
		return fmt.Errorf("--url is a required option")
	}

	if _, err := spreadsheetID(cmd.url); err != nil {
		return err
	}

	return nil
}

// connect authorises access to the Google Sheets API and returns the service
// and spreadsheet ID.
func (cmd *command) connect(ctx context.Context, scope string) (*sheets.Service, string, error) {
	spreadsheet, err := spreadsheetID(cmd.url)
	if err != nil {
		return nil, "", err
	}

	if cmd.debug {
		debugf("Spreadsheet - ID:%s  worksheet:%s", spreadsheet, cmd.worksheet)
	}

	client, err := authorize(ctx, cmd.credentials, scope, cmd.tokens)
	if err != nil {
		return nil, "", fmt.Errorf("authentication/authorization error (%w)", err)
	}

	google, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, "", fmt.Errorf("unable to create new Sheets client (%w)", err)
	}

	return google, spreadsheet, nil
}

func (cmd *command) open(ctx context.Context, google *sheets.Service, spreadsheet string) (*datasheet.GoogleWorksheet, error) {
	return datasheet.OpenGoogleWorksheet(ctx, google, spreadsheet, cmd.worksheet,
		datasheet.WithRateLimit(rate.Limit(cmd.conf.RateLimit), cmd.conf.RateBurst),
		datasheet.WithRetries(cmd.conf.Retries, 0),
		datasheet.WithWorksheetLogger(logger("worksheet")))
}

func spreadsheetID(url string) (string, error) {
	match := regexp.MustCompile(`^https://docs.google.com/spreadsheets/d/(.*?)(?:/.*)?$`).FindStringSubmatch(strings.TrimSpace(url))
	if len(match) < 2 || match[1] == "" {
		return "", fmt.Errorf("invalid spreadsheet URL - expected something like 'https://docs.google.com/spreadsheets/d/1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms'")
	}

	return match[1], nil
}

func helpOptions(flagset *flag.FlagSet) {
	flagset.VisitAll(func(f *flag.Flag) {
		fmt.Printf("    --%-16s %s\n", f.Name, f.Usage)
	})

	fmt.Println()
	fmt.Println("  Options:")
	fmt.Println()
	fmt.Println("    --debug   Displays internal information for diagnosing errors")
	fmt.Println("    --config  YAML configuration file with defaults for the command options")
}

func normalise(v string) string {
	return strings.ToLower(strings.ReplaceAll(v, " ", ""))
}
