// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// command returns the root command with global flags and every subcommand.
func (r *Runner) command() *cli.Command {
	return &cli.Command{
		Name:    "autohaus",
		Usage:   "Manage the autohaus website content from the terminal",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.StringFlag{
				Name:  "env",
				Usage: "Path to dotenv file",
				Value: ".env",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Before:   r.Init,
		After:    r.Close,
		Commands: r.register(),
	}
}

func jsonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
			Value: true,
		},
	}
}

func dataFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "data",
			Aliases: []string{"d"},
			Usage:   "JSON body with the fields to send",
		},
		&cli.StringFlag{
			Name:    "file",
			Aliases: []string{"f"},
			Usage:   "Read the JSON body from a file",
		},
	}
}

// setupCommand initializes the config file and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create the config file if missing, initialize the database and run migrations",
		Action: r.Setup,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "status",
				Usage: "Only print applied migrations",
			},
			&cli.BoolFlag{
				Name:  "rollback",
				Usage: "Roll back the most recent migration",
			},
		},
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage authentication against the content backend",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Log in with username and password",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "username",
						Aliases: []string{"u"},
						Usage:   "Username (falls back to AUTOHAUS_USERNAME, then a prompt)",
					},
					&cli.StringFlag{
						Name:    "password",
						Aliases: []string{"p"},
						Usage:   "Password (falls back to AUTOHAUS_PASSWORD, then a prompt)",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "logout",
				Usage:  "Clear stored tokens",
				Action: r.AuthLogout,
			},
			{
				Name:   "status",
				Usage:  "Show whether a session is stored and valid",
				Action: r.AuthStatus,
			},
			{
				Name:   "whoami",
				Usage:  "Print the current user",
				Flags:  jsonFlags(),
				Action: r.AuthWhoami,
			},
			{
				Name:  "verify",
				Usage: "Ask the backend whether a token is valid",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "token"},
				},
				Action: r.AuthVerify,
			},
			{
				Name:   "refresh",
				Usage:  "Exchange the refresh token for a new pair",
				Action: r.AuthRefresh,
			},
			{
				Name:  "import",
				Usage: "Store a token pair from a JSON file with access and refresh fields",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Action: r.AuthImport,
			},
		},
	}
}

// eventsCommand handles event CRUD against the backend
func eventsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "Manage events on the backend",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List all events",
				Flags:  jsonFlags(),
				Action: r.EventsList,
			},
			{
				Name:      "show",
				Usage:     "Show one event",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags:     jsonFlags(),
				Action:    r.EventsShow,
			},
			{
				Name:   "create",
				Usage:  "Create an event from JSON",
				Flags:  dataFlags(),
				Action: r.EventsCreate,
			},
			{
				Name:      "update",
				Usage:     "Patch an event with JSON fields",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags:     dataFlags(),
				Action:    r.EventsUpdate,
			},
			{
				Name:      "delete",
				Usage:     "Delete an event",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.EventsDelete,
			},
			{
				Name:      "clone",
				Usage:     "Create the ticket shop for an event",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.EventsClone,
			},
			{
				Name:  "upload",
				Usage: "Upload a poster image for an event",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
					&cli.StringArg{Name: "path"},
				},
				Action: r.EventsUpload,
			},
		},
	}
}

// artistsCommand handles artist CRUD against the backend
func artistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "artists",
		Usage: "Manage artists on the backend",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List artists",
				Flags: append(jsonFlags(), &cli.BoolFlag{
					Name:  "all",
					Usage: "Follow pagination and list every artist",
				}),
				Action: r.ArtistsList,
			},
			{
				Name:      "show",
				Usage:     "Show one artist",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags:     jsonFlags(),
				Action:    r.ArtistsShow,
			},
			{
				Name:   "create",
				Usage:  "Create an artist from JSON; media links are converted to embeds",
				Flags:  dataFlags(),
				Action: r.ArtistsCreate,
			},
			{
				Name:      "update",
				Usage:     "Patch an artist with JSON fields",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags:     dataFlags(),
				Action:    r.ArtistsUpdate,
			},
			{
				Name:      "delete",
				Usage:     "Delete an artist",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.ArtistsDelete,
			},
			{
				Name:  "upload",
				Usage: "Upload an image for an artist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
					&cli.StringArg{Name: "path"},
				},
				Action: r.ArtistsUpload,
			},
		},
	}
}

// checklistCommand handles checklist templates and per-event instances
func checklistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "checklist",
		Usage: "Manage event checklists",
		Commands: []*cli.Command{
			{
				Name:  "templates",
				Usage: "Checklist template items",
				Commands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "List template items",
						Flags:  jsonFlags(),
						Action: r.ChecklistTemplates,
					},
					{
						Name:  "create",
						Usage: "Create a template item",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "name", Required: true, Usage: "Item name"},
							&cli.StringFlag{Name: "stage", Usage: "Stage label"},
							&cli.StringFlag{Name: "phase", Value: "before", Usage: "before, during or after"},
						},
						Action: r.ChecklistTemplateCreate,
					},
					{
						Name:      "delete",
						Usage:     "Delete a template item",
						Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
						Action:    r.ChecklistTemplateDelete,
					},
				},
			},
			{
				Name:  "instances",
				Usage: "List checklist items, optionally for one event",
				Flags: append(jsonFlags(), &cli.StringFlag{
					Name:  "event",
					Usage: "Event ID",
				}),
				Action: r.ChecklistInstances,
			},
			{
				Name:  "status",
				Usage: "Set the status of a checklist item",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
					&cli.StringArg{Name: "status"},
				},
				Action: r.ChecklistStatus,
			},
		},
	}
}

// settingsCommand handles named site content blocks
func settingsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "Read and edit named site content",
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Show a setting by name",
				Arguments: []cli.Argument{&cli.StringArg{Name: "name"}},
				Flags:     jsonFlags(),
				Action:    r.SettingsGet,
			},
			{
				Name:      "set",
				Usage:     "Set a setting's content, creating it when missing",
				Arguments: []cli.Argument{&cli.StringArg{Name: "name"}},
				Flags: append(dataFlags(), &cli.StringFlag{
					Name:  "content",
					Usage: "Plain text stored in the content field",
				}),
				Action: r.SettingsSet,
			},
		},
	}
}

// listingCommand handles the public event listing
func listingCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "listing",
		Usage: "Work with the public event listing",
		Commands: []*cli.Command{
			{
				Name:   "upcoming",
				Usage:  "List events from today onward",
				Flags:  jsonFlags(),
				Action: r.ListingUpcoming,
			},
			{
				Name:   "past",
				Usage:  "List past events, most recent first",
				Flags:  jsonFlags(),
				Action: r.ListingPast,
			},
			{
				Name:      "show",
				Usage:     "Show one event by id or key",
				Arguments: []cli.Argument{&cli.StringArg{Name: "key"}},
				Flags: append(jsonFlags(), &cli.BoolFlag{
					Name:  "markdown",
					Usage: "Render as Markdown",
				}),
				Action: r.ListingShow,
			},
			{
				Name:  "export",
				Usage: "Export events to files",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Value: "json", Usage: "json, csv, markdown or txt"},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output directory"},
					&cli.IntFlag{Name: "workers", Value: 5, Usage: "Concurrent exports"},
					&cli.IntFlag{Name: "rate", Value: 5, Usage: "Poster downloads per second"},
					&cli.BoolFlag{Name: "posters", Usage: "Download posters for markdown exports"},
					&cli.StringFlag{Name: "when", Value: "all", Usage: "all, upcoming or past"},
					&cli.StringFlag{Name: "csv", Usage: "Also write every event into one CSV file at this path"},
				},
				Action: r.ListingExport,
			},
			{
				Name:  "pull",
				Usage: "Fetch events from the backend into the static events file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Events file (defaults to listing.events_path)"},
				},
				Action: r.ListingPull,
			},
			{
				Name:      "open",
				Usage:     "Open an event's ticket shop in the browser",
				Arguments: []cli.Argument{&cli.StringArg{Name: "key"}},
				Action:    r.ListingOpen,
			},
		},
	}
}

// syncCommand follows the backend's event streams
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Run and inspect backend event streams",
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Follow the sync stream until it completes",
				Flags:  jsonFlags(),
				Action: r.SyncRun,
			},
			{
				Name:      "write",
				Usage:     "Write events to the website and follow the stream",
				ArgsUsage: "<event id>...",
				Flags:     jsonFlags(),
				Action: r.SyncWrite,
			},
			{
				Name:  "history",
				Usage: "List recorded stream runs, or show one run's log",
				Flags: append(jsonFlags(),
					&cli.IntFlag{Name: "limit", Value: 20, Usage: "Number of runs to list"},
					&cli.StringFlag{Name: "kind", Usage: "sync or write"},
					&cli.IntFlag{Name: "run", Usage: "Show the log of the run with this number"},
				),
				Action: r.SyncHistory,
			},
		},
	}
}

// cacheCommand handles the local event cache
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Manage the local event cache",
		Commands: []*cli.Command{
			{
				Name:   "events",
				Usage:  "Fetch all events from the backend into the cache",
				Action: r.CacheEvents,
			},
			{
				Name:   "clear",
				Usage:  "Remove cached events",
				Action: r.CacheClear,
			},
		},
	}
}

// apiCommand handles direct backend calls
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct authenticated calls to the backend",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "GET a path and print the JSON response",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.APIGet,
			},
			{
				Name:  "post",
				Usage: "POST a JSON body to a path",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "JSON body to send",
						Required: true,
					},
				},
				Action: r.APIPost,
			},
		},
	}
}

// serveCommand runs the read-only listing server
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the event listing as JSON with Prometheus metrics",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "Listen address (defaults to server.host:server.port)"},
		},
		Action: r.Serve,
	}
}

// tuiCommand returns the top-level TUI command for interactive event publishing.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch interactive TUI for browsing and publishing events",
		Action:  r.TUI,
	}
}
