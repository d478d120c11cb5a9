package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "inventoryctl:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "inventoryctl",
		Usage: "operate the inventory hub",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "warn", EnvVars: []string{"INVHUB_LOG_LEVEL"}},
		},
		Commands: []*cli.Command{
			migrateCommand(),
			seedCommand(),
			tokenCommand(),
			stockCommand(),
			eventsCommand(),
		},
	}
}
