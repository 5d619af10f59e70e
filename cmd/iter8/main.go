package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	uhppoted "github.com/uhppoted/uhppoted-lib/command"

	"github.com/iter8-sheets/iter8/commands"
)

var cli = []uhppoted.Command{
	&commands.VersionCmd,
	&commands.GetCmd,
	&commands.PutCmd,
	&commands.DiffCmd,
	&commands.UpdateCmd,
}

var options = commands.Options{
	Config: "",
	Debug:  false,
}

var help = uhppoted.NewHelp(commands.APP, cli, nil)

func main() {
	flag.StringVar(&options.Config, "config", options.Config, "Configuration file path")
	flag.BoolVar(&options.Debug, "debug", options.Debug, "Enable debugging information")
	flag.Parse()

	cmd, err := uhppoted.Parse(cli, nil, help)
	if err != nil {
		fmt.Printf("\nError parsing command line: %v\n\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	if cmd == nil {
		help.Execute(ctx)
		os.Exit(1)
	}

	if err = cmd.Execute(ctx, &options); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}
