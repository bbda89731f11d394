package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/hpungsan/reqlens/internal/errors"
	"github.com/hpungsan/reqlens/internal/ops"
	"github.com/hpungsan/reqlens/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(env *ops.Env) *cli.App {
	app := &cli.App{
		Name:      "reqlens",
		Usage:     "Requirements extraction and allocation",
		Version:   Version,
		Writer:    os.Stdout,
		ErrWriter: os.Stderr,
		Commands: []*cli.Command{
			extractCmd(env),
			reviewCmd(env),
			allocateCmd(env),
			applyCmd(env),
			qualityCmd(env),
			selectCmd(env),
			removeCmd(env),
			addCmd(env),
			exportCmd(env),
			acceptCmd(env),
			listCmd(env),
			deleteCmd(env),
			forgetCmd(env),
			watchCmd(env),
			serveCmd(env),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// documentArg returns the <file> argument every document command takes.
func documentArg(c *cli.Context) (string, error) {
	if c.NArg() < 1 {
		return "", errors.NewInvalidRequest("document path is required")
	}
	return c.Args().First(), nil
}

func extractCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "extract",
		Usage:     "Extract requirement candidates from a document",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "no-cache", Usage: "Re-run the pipeline even if the document is unchanged"},
			&cli.BoolFlag{Name: "json", Usage: "Print the full result as JSON"},
		},
		Action: func(c *cli.Context) error {
			path, err := documentArg(c)
			if err != nil {
				return outputError(err)
			}
			output, err := ops.Extract(c.Context, env, ops.ExtractInput{Path: path, Force: c.Bool("no-cache")})
			if err != nil {
				return outputError(err)
			}
			if c.Bool("json") {
				return outputJSON(c.App.Writer, output)
			}
			return printCandidates(c.App.Writer, output)
		},
	}
}

// printCandidates writes the one-line-per-candidate listing.
func printCandidates(w io.Writer, out *ops.ExtractOutput) error {
	fmt.Fprintf(w, "%s: %d candidates (parser: %s", out.Document.Name, len(out.Candidates), out.ParserMode)
	if out.Cached {
		fmt.Fprint(w, ", cached")
	}
	fmt.Fprintln(w, ")")
	if out.ParserError != "" {
		fmt.Fprintf(w, "parser error: %s\n", out.ParserError)
	}
	for _, c := range out.Candidates {
		mark := " "
		if c.Selected {
			mark = "*"
		}
		fmt.Fprintf(w, "%s %s [%s %.2f] %s\n    %s\n", mark, c.ID, c.Confidence, c.Score, c.Name, c.Text)
	}
	return nil
}

func reviewCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "review",
		Usage:     "Locate candidates in the rendered document",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "segments", Usage: "Include the plain/match segments of the buffer"},
		},
		Action: func(c *cli.Context) error {
			path, err := documentArg(c)
			if err != nil {
				return outputError(err)
			}
			output, err := ops.Review(c.Context, env, ops.ReviewInput{Path: path, Segments: c.Bool("segments")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

func allocateCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "allocate",
		Usage:     "Suggest a subsystem for every open candidate",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "subsystems", Aliases: []string{"s"}, Usage: "Subsystem catalog YAML (overrides config)"},
			&cli.BoolFlag{Name: "ai", Usage: "Ask the AI reviewer first"},
		},
		Action: func(c *cli.Context) error {
			path, err := documentArg(c)
			if err != nil {
				return outputError(err)
			}
			output, err := ops.Allocate(c.Context, env, ops.AllocateInput{
				Path:           path,
				SubsystemsFile: c.String("subsystems"),
				UseAI:          c.Bool("ai"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

func applyCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "apply",
		Usage:     "Apply an allocation to one candidate",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "candidate", Aliases: []string{"c"}, Required: true, Usage: "Candidate ID"},
			&cli.StringFlag{Name: "allocation", Aliases: []string{"a"}, Usage: "Assign this subsystem instead of the suggestion (empty clears)"},
			&cli.BoolFlag{Name: "create", Usage: "Add a proposed new subsystem to the catalog"},
			&cli.StringFlag{Name: "subsystems", Aliases: []string{"s"}, Usage: "Subsystem catalog YAML (overrides config)"},
			&cli.BoolFlag{Name: "ai", Usage: "Ask the AI reviewer first"},
		},
		Action: func(c *cli.Context) error {
			path, err := documentArg(c)
			if err != nil {
				return outputError(err)
			}
			input := ops.ApplyInput{
				Path:           path,
				CandidateID:    c.String("candidate"),
				Create:         c.Bool("create"),
				SubsystemsFile: c.String("subsystems"),
				UseAI:          c.Bool("ai"),
			}
			if c.IsSet("allocation") {
				alloc := c.String("allocation")
				input.Allocation = &alloc
			}
			output, err := ops.ApplyAllocation(c.Context, env, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

func qualityCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "quality",
		Usage:     "Run the AI quality review over weak candidates",
		ArgsUsage: "<file>",
		Action: func(c *cli.Context) error {
			path, err := documentArg(c)
			if err != nil {
				return outputError(err)
			}
			output, err := ops.QualityReview(c.Context, env, ops.QualityInput{Path: path})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

func selectCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "select",
		Usage:     "Select (or with --off, unselect) a candidate",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "candidate", Aliases: []string{"c"}, Required: true, Usage: "Candidate ID"},
			&cli.BoolFlag{Name: "off", Usage: "Unselect instead"},
		},
		Action: func(c *cli.Context) error {
			path, err := documentArg(c)
			if err != nil {
				return outputError(err)
			}
			output, err := ops.Select(c.Context, env, ops.SelectInput{
				Path:        path,
				CandidateID: c.String("candidate"),
				Selected:    !c.Bool("off"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

func removeCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "remove",
		Usage:     "Remove a candidate from the working set",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "candidate", Aliases: []string{"c"}, Required: true, Usage: "Candidate ID"},
		},
		Action: func(c *cli.Context) error {
			path, err := documentArg(c)
			if err != nil {
				return outputError(err)
			}
			output, err := ops.Remove(c.Context, env, ops.RemoveInput{Path: path, CandidateID: c.String("candidate")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

func addCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Add a manual candidate from a sentence in the document",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "text", Aliases: []string{"t"}, Required: true, Usage: "Sentence to add"},
		},
		Action: func(c *cli.Context) error {
			path, err := documentArg(c)
			if err != nil {
				return outputError(err)
			}
			output, err := ops.Add(c.Context, env, ops.AddInput{Path: path, Text: c.String("text")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

func exportCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Export candidates to a CSV, JSON or text file",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "csv", Usage: "Export format: csv|json|text"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Export file path (default: ~/.reqlens/exports/<document>-<timestamp>.<ext>)"},
			&cli.BoolFlag{Name: "selected", Usage: "Export only selected candidates"},
		},
		Action: func(c *cli.Context) error {
			path, err := documentArg(c)
			if err != nil {
				return outputError(err)
			}
			output, err := ops.Export(c.Context, env, ops.ExportInput{
				Path:         path,
				Format:       c.String("format"),
				Out:          c.String("out"),
				SelectedOnly: c.Bool("selected"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

func acceptCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "accept",
		Usage:     "Accept selected candidates as requirement records",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "candidate", Aliases: []string{"c"}, Usage: "Accept these candidates instead of the selection"},
		},
		Action: func(c *cli.Context) error {
			path, err := documentArg(c)
			if err != nil {
				return outputError(err)
			}
			output, err := ops.Accept(c.Context, env, ops.AcceptInput{Path: path, CandidateIDs: c.StringSlice("candidate")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

func listCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "list",
		Usage:     "List accepted requirement records",
		ArgsUsage: "[file]",
		Action: func(c *cli.Context) error {
			output, err := ops.List(c.Context, env, ops.ListInput{Path: c.Args().First()})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

func deleteCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete an accepted requirement record",
		ArgsUsage: "<record-id>",
		Action: func(c *cli.Context) error {
			output, err := ops.DeleteRecord(c.Context, env, ops.DeleteRecordInput{ID: c.Args().First()})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

func forgetCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "forget",
		Usage:     "Drop cached candidates for a document",
		ArgsUsage: "<file>",
		Action: func(c *cli.Context) error {
			path, err := documentArg(c)
			if err != nil {
				return outputError(err)
			}
			output, err := ops.Forget(c.Context, env, ops.ForgetInput{Path: path})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

func watchCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Re-extract a document whenever it changes (Ctrl-C to stop)",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "debounce", Usage: "Quiet period before a change triggers a run (default 250ms)"},
		},
		Action: func(c *cli.Context) error {
			path, err := documentArg(c)
			if err != nil {
				return outputError(err)
			}
			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// results arrive from concurrent runs; one encoder keeps lines whole
			results := make(chan *ops.ExtractOutput)
			done := make(chan struct{})
			go func() {
				defer close(done)
				enc := json.NewEncoder(c.App.Writer)
				for out := range results {
					_ = enc.Encode(out)
				}
			}()

			err = ops.Watch(ctx, env, ops.WatchInput{Path: path, Debounce: c.Duration("debounce")},
				func(out *ops.ExtractOutput, err error) {
					if err != nil {
						fmt.Fprintf(c.App.ErrWriter, "error: %v\n", err)
						return
					}
					if out.Discarded {
						return
					}
					select {
					case results <- out:
					case <-ctx.Done():
					}
				})
			close(results)
			<-done
			if err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

func serveCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the web review UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Aliases: []string{"b"}, Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: 8180, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			srv, err := web.NewServer(env, web.Options{
				Bind:     c.String("bind"),
				Port:     c.Int("port"),
				Version:  Version,
				Gatherer: prometheus.DefaultGatherer,
			})
			if err != nil {
				return outputError(err)
			}
			return web.Run(srv, env.Logger)
		},
	}
}

// Helper functions

// outputJSON writes v to w as indented JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if rErr, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", rErr.Code, rErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
