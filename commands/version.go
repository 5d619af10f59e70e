package commands

import (
	"flag"
	"fmt"
)

// VERSION is set at build time with -ldflags "-X github.com/iter8-sheets/iter8/commands.VERSION=..."
var VERSION = "v0.1.0"

var VersionCmd = Version{}

// Version prints the iter8 release.
type Version struct {
}

func (c *Version) FlagSet() *flag.FlagSet {
	return flag.NewFlagSet("version", flag.ExitOnError)
}

func (c *Version) Execute(args ...any) error {
	fmt.Printf("%s\n", VERSION)

	return nil
}

func (c *Version) Name() string {
	return "version"
}

func (c *Version) Description() string {
	return "Prints the iter8 version"
}

func (c *Version) Usage() string {
	return ""
}

func (c *Version) Help() {
	fmt.Println()
	fmt.Printf("  Usage: %s version\n", APP)
	fmt.Println()
	fmt.Println("  Prints the release the binary was built from e.g. v0.1.0")
	fmt.Println()
}
