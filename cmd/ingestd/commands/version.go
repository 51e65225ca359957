package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// Version is set at build time with -ldflags "-X ...commands.Version=...".
var Version = "dev"

// VersionAction prints the build version.
func VersionAction(_ context.Context, cmd *cli.Command) error {
	_, err := fmt.Fprintln(cmd.Root().Writer, Version)
	return err
}
