package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/pocket/internal/capsule"
	"github.com/hpungsan/pocket/internal/config"
	"github.com/hpungsan/pocket/internal/errors"
	"github.com/hpungsan/pocket/internal/logging"
	"github.com/hpungsan/pocket/internal/ops"
	"github.com/hpungsan/pocket/internal/store"
	"github.com/hpungsan/pocket/internal/web"
)

// maxStdinBytes bounds capsule JSON read from stdin.
const maxStdinBytes = ops.MaxImportBytes

// newCLIApp creates the CLI application with all commands.
func newCLIApp(s *store.Store, cfg *config.Config, log *logging.Logger) *cli.App {
	if log == nil {
		log = logging.Nop()
	}
	app := &cli.App{
		Name:    "pocket",
		Usage:   "Pocket Classroom capsule store",
		Version: Version,
		Commands: []*cli.Command{
			listCmd(s),
			showCmd(s),
			saveCmd(s),
			deleteCmd(s),
			exportCmd(s, cfg),
			importCmd(s, cfg),
			progressCmd(s),
			quizCmd(s),
			draftCmd(s),
			purgeCmd(s),
			serveCmd(s, cfg, log),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// listCmd creates the list command.
func listCmd(s *store.Store) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List capsules in the library, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "subject", Aliases: []string{"s"}, Usage: "Filter by subject"},
			&cli.StringFlag{Name: "level", Aliases: []string{"l"}, Usage: "Filter by level"},
			&cli.IntFlag{Name: "limit", Value: ops.DefaultListLimit, Usage: "Maximum items to return"},
			&cli.IntFlag{Name: "offset", Usage: "Items to skip"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.List(c.Context, s, ops.ListInput{
				Subject: c.String("subject"),
				Level:   c.String("level"),
				Limit:   c.Int("limit"),
				Offset:  c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// showCmd creates the show command.
func showCmd(s *store.Store) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show a capsule and its progress",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			output, err := ops.Fetch(c.Context, s, c.Args().First())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// saveCmd creates the save command.
func saveCmd(s *store.Store) *cli.Command {
	return &cli.Command{
		Name:  "save",
		Usage: "Save a capsule (reads capsule JSON from stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "id", Usage: "Update the capsule with this id instead of creating one"},
		},
		Action: func(c *cli.Context) error {
			in, err := readCapsuleStdin()
			if err != nil {
				return outputError(err)
			}
			output, err := ops.Store(c.Context, s, ops.StoreInput{ID: c.String("id"), Capsule: in})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(s *store.Store) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a capsule and its progress",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			output, err := ops.Delete(c.Context, s, c.Args().First())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// exportCmd creates the export command.
func exportCmd(s *store.Store, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Export a capsule to a JSON exchange file",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export file path (default: ~/.pocket/exports/<title>-<time>.json)"},
			&cli.BoolFlag{Name: "stdout", Usage: "Write the exchange JSON to stdout instead of a file"},
		},
		Action: func(c *cli.Context) error {
			id := c.Args().First()
			if c.Bool("stdout") {
				if c.IsSet("path") {
					return outputError(errors.NewInvalidRequest("--path and --stdout are mutually exclusive"))
				}
				text, _, err := ops.ExportText(c.Context, s, id)
				if err != nil {
					return outputError(err)
				}
				_, err = fmt.Fprintln(os.Stdout, text)
				return err
			}

			output, err := ops.Export(c.Context, s, cfg, ops.ExportInput{ID: id, Path: c.String("path")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// importCmd creates the import command.
func importCmd(s *store.Store, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import a capsule from a JSON exchange file (or stdin with -)",
		ArgsUsage: "<path|->",
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			var (
				output *ops.ImportOutput
				err    error
			)
			switch path {
			case "":
				return outputError(errors.NewInvalidRequest("path is required (use - for stdin)"))
			case "-":
				output, err = ops.ImportReader(c.Context, s, os.Stdin)
			default:
				output, err = ops.Import(c.Context, s, cfg, ops.ImportInput{Path: path})
			}
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// progressCmd creates the progress command and its subcommands.
func progressCmd(s *store.Store) *cli.Command {
	return &cli.Command{
		Name:  "progress",
		Usage: "Read or change learner progress",
		Subcommands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Show progress for a capsule",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					output, err := ops.GetProgress(c.Context, s, c.Args().First())
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "set",
				Usage:     "Overwrite progress for a capsule",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "best", Usage: "Best quiz score (0-100)"},
					&cli.StringFlag{Name: "known", Usage: "Comma-separated known flashcard indexes"},
				},
				Action: func(c *cli.Context) error {
					known, err := parseIndexes(c.String("known"))
					if err != nil {
						return outputError(err)
					}
					output, err := ops.SaveProgress(c.Context, s, c.Args().First(), capsule.Progress{
						BestScore:       c.Int("best"),
						KnownFlashcards: known,
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "score",
				Usage:     "Record a quiz score, keeping the best",
				ArgsUsage: "<id> <score>",
				Action: func(c *cli.Context) error {
					score, err := strconv.Atoi(c.Args().Get(1))
					if err != nil {
						return outputError(errors.NewInvalidRequest("score must be an integer"))
					}
					output, err := ops.RecordScore(c.Context, s, c.Args().Get(0), score)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "known",
				Usage:     "Mark a flashcard known (or unknown with --unset)",
				ArgsUsage: "<id> <card>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "unset", Usage: "Remove the card from the known set"},
				},
				Action: func(c *cli.Context) error {
					card, err := strconv.Atoi(c.Args().Get(1))
					if err != nil {
						return outputError(errors.NewInvalidRequest("card must be an integer"))
					}
					output, err := ops.MarkKnown(c.Context, s, c.Args().Get(0), card, !c.Bool("unset"))
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// quizCmd creates the quiz command.
func quizCmd(s *store.Store) *cli.Command {
	return &cli.Command{
		Name:      "quiz",
		Usage:     "Grade quiz answers (choice indexes, -1 to skip) and record the score",
		ArgsUsage: "<id> <answer>...",
		Action: func(c *cli.Context) error {
			args := c.Args().Slice()
			if len(args) == 0 {
				return outputError(errors.NewInvalidRequest("id is required"))
			}
			answers := make([]int, 0, len(args)-1)
			for _, a := range args[1:] {
				v, err := strconv.Atoi(a)
				if err != nil {
					return outputError(errors.NewInvalidRequest(fmt.Sprintf("invalid answer %q", a)))
				}
				answers = append(answers, v)
			}
			output, err := ops.SubmitQuiz(c.Context, s, args[0], answers)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// draftCmd creates the draft command and its subcommands.
func draftCmd(s *store.Store) *cli.Command {
	return &cli.Command{
		Name:  "draft",
		Usage: "Work with the author draft",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show the current draft",
				Action: func(c *cli.Context) error {
					d, err := s.LoadDraft(c.Context)
					if err != nil {
						return outputError(err)
					}
					if d == nil {
						return outputError(errors.NewInvalidRequest("no draft"))
					}
					return outputJSON(d)
				},
			},
			{
				Name:  "save",
				Usage: "Save capsule JSON from stdin as the draft",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Usage: "Capsule id the draft edits"},
				},
				Action: func(c *cli.Context) error {
					in, err := readCapsuleStdin()
					if err != nil {
						return outputError(err)
					}
					if err := s.SaveDraft(c.Context, &store.Draft{ID: c.String("id"), Capsule: *in}); err != nil {
						return outputError(err)
					}
					d, err := s.LoadDraft(c.Context)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(d)
				},
			},
			{
				Name:      "edit",
				Usage:     "Copy a stored capsule into the draft",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := ops.ValidateID(c.Args().First())
					if err != nil {
						return outputError(err)
					}
					d, err := s.EditDraft(c.Context, id)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(d)
				},
			},
			{
				Name:  "clear",
				Usage: "Discard the draft",
				Action: func(c *cli.Context) error {
					if err := s.ClearDraft(c.Context); err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]bool{"cleared": true})
				},
			},
			{
				Name:  "commit",
				Usage: "Save the draft as a capsule and clear it",
				Action: func(c *cli.Context) error {
					id, err := s.CommitDraft(c.Context)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(ops.StoreOutput{ID: id})
				},
			},
		},
	}
}

// purgeCmd creates the purge command.
func purgeCmd(s *store.Store) *cli.Command {
	return &cli.Command{
		Name:  "purge",
		Usage: "Delete progress records whose capsule no longer exists",
		Action: func(c *cli.Context) error {
			output, err := ops.Purge(c.Context, s)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// serveCmd creates the serve command (web UI).
func serveCmd(s *store.Store, cfg *config.Config, log *logging.Logger) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Address to bind (default from config: 127.0.0.1)"},
			&cli.IntFlag{Name: "port", Usage: "Port to listen on (default from config: 8321)"},
		},
		Action: func(c *cli.Context) error {
			serveCfg := *cfg
			if c.IsSet("bind") {
				serveCfg.WebBind = c.String("bind")
			}
			if c.IsSet("port") {
				serveCfg.WebPort = c.Int("port")
			}
			if err := serveCfg.Validate(); err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}

			srv, err := web.NewServer(s, &serveCfg, log, Version)
			if err != nil {
				return outputError(err)
			}
			if err := web.Run(c.Context, srv, log); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var pErr *errors.PocketError
	if stderrors.As(err, &pErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", pErr.Code, pErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads up to limit bytes from stdin.
func readStdin(limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, limit+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("input exceeds %d bytes", limit)
	}
	return strings.TrimSpace(string(data)), nil
}

// readCapsuleStdin reads a capsule from stdin. Both a bare capsule object and
// an exchange envelope are accepted.
func readCapsuleStdin() (*capsule.Capsule, error) {
	if !stdinHasData() {
		return nil, errors.NewInvalidRequest("capsule JSON must be piped via stdin")
	}
	text, err := readStdin(maxStdinBytes)
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}
	if text == "" {
		return nil, errors.NewInvalidRequest("capsule JSON is required")
	}
	return parseCapsuleJSON([]byte(text))
}

// parseCapsuleJSON decodes a bare capsule or an envelope's capsule.
func parseCapsuleJSON(data []byte) (*capsule.Capsule, error) {
	env, err := capsule.ParseEnvelope(data)
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid JSON: %v", err))
	}
	if env.Capsule != nil {
		return env.Capsule, nil
	}
	var c capsule.Capsule
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid capsule: %v", err))
	}
	return &c, nil
}

// parseIndexes splits a comma-separated list of flashcard indexes.
func parseIndexes(s string) ([]int, error) {
	out := []int{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid flashcard index %q", part))
		}
		out = append(out, n)
	}
	return out, nil
}
