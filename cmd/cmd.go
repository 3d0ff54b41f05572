// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

func libraryFlags() []cli.Flag {
	return []cli.Flag{
		configFlag(),
		&cli.StringFlag{
			Name:  "dir",
			Usage: "Library directory containing per-user stores",
		},
		&cli.StringFlag{
			Name:    "user",
			Aliases: []string{"u"},
			Usage:   "Active user owning the destination store",
		},
	}
}

// setupCommand initializes config and the active user's store
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create config.toml and initialize the active user's store",
		Flags:  libraryFlags(),
		Action: r.Setup,
	}
}

// dbCommand handles store schema operations
func dbCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "db",
		Usage: "Store schema operations",
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "Apply pending migrations to the active user's store",
				Flags:  libraryFlags(),
				Action: r.DBMigrate,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent migration",
				Flags:  libraryFlags(),
				Action: r.DBRollback,
			},
		},
	}
}

// storesCommand inspects candidate stores
func storesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "stores",
		Usage: "Candidate store operations",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List stores that the next merge would visit",
				Flags: append(libraryFlags(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				),
				Action: r.StoresList,
			},
		},
	}
}

// mergeCommand drives the reconciliation engine
func mergeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "merge",
		Usage: "Fold the other household stores into the active user's store",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run one merge pass",
				Flags: append(libraryFlags(),
					&cli.StringFlag{
						Name:  "policy",
						Usage: "Conflict policy: current-user, source, newest or oldest",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print JSON output",
					},
					&cli.BoolFlag{
						Name:  "markdown",
						Usage: "Output a Markdown report",
					},
				),
				Action: r.MergeRun,
			},
			{
				Name:  "watch",
				Usage: "Merge periodically until interrupted",
				Flags: append(libraryFlags(),
					&cli.StringFlag{
						Name:  "policy",
						Usage: "Conflict policy: current-user, source, newest or oldest",
					},
					&cli.IntFlag{
						Name:  "every",
						Usage: "Minutes between runs (overrides config)",
					},
				),
				Action: r.MergeWatch,
			},
		},
	}
}
