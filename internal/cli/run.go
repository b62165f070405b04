package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/zaler23/writer/internal/engine"
	"github.com/zaler23/writer/internal/payload"
	"github.com/zaler23/writer/internal/provider"
	"github.com/zaler23/writer/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database         string
	Input            string
	RequiresApproval bool

	// Generator allows overriding the text generator (for testing).
	// If nil, defaults to the built-in mock writer.
	Generator provider.Generator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <project-id> <chapter-id>",
		Short: "Create and drive a chapter run",
		Long: `Create a chapter generation run and drive it until it completes, fails
or pauses for approval. The run's final state is printed as JSON.

Example:
  writer run --db ./writer.db proj_01ABC ch_01DEF
  writer run --db ./writer.db --input '{"prompt":"opening scene"}' proj_01ABC ch_01DEF`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Input, "input", "", "run input as a JSON object")
	cmd.Flags().BoolVar(&opts.RequiresApproval, "requires-approval", false, "pause for approval before finalizing text")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runOnce(opts *RunOptions, projectID, chapterID string, cmd *cobra.Command) error {
	var input payload.Value
	if opts.Input != "" {
		parsed, err := payload.Parse(opts.Input)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --input", err)
		}
		input = parsed
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	gen := opts.Generator
	if gen == nil {
		gen = provider.Mock{}
	}
	eng := engine.New(engine.Config{Store: st, Generator: gen})

	ctx := cmd.Context()
	run, err := eng.CreateRun(ctx, engine.CreateRunParams{
		ProjectID:        projectID,
		ChapterID:        chapterID,
		Input:            input,
		RequiresApproval: opts.RequiresApproval,
		AutoStart:        true,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create run", err)
	}

	out, err := json.MarshalIndent(map[string]any{
		"id":         run.ID,
		"status":     run.Status,
		"output":     run.Output,
		"started_at": run.StartedAt,
	}, "", "  ")
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to render run", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))

	if run.Status == store.RunFailed {
		return WrapExitError(ExitFailure, "run failed", nil)
	}
	return nil
}
