// Package app builds the walletd command line application.
package app

import (
	"fmt"
	"os"
	"runtime"

	"github.com/hdcustody/walletd/cli/server"
	"github.com/hdcustody/walletd/pkg/config"
	"github.com/urfave/cli"
)

func versionPrinter(c *cli.Context) {
	_, _ = fmt.Fprintf(c.App.Writer, "walletd\nVersion: %s\nGoVersion: %s\n",
		config.Version,
		runtime.Version(),
	)
}

// New creates a walletd instance of [cli.App] with all commands included.
func New() *cli.App {
	cli.VersionPrinter = versionPrinter
	ctl := cli.NewApp()
	ctl.Name = "walletd"
	ctl.Version = config.Version
	ctl.Usage = "Custodial wallet provisioning services"
	ctl.ErrWriter = os.Stdout

	ctl.Commands = append(ctl.Commands, server.NewCommands()...)
	return ctl
}
