package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zaler23/writer/internal/store"
)

// InitDBOptions holds flags for the initdb command.
type InitDBOptions struct {
	*RootOptions
	Database string
}

// NewInitDBCommand creates the initdb command.
func NewInitDBCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitDBOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "initdb",
		Short: "Create or migrate the database",
		Long: `Create the SQLite database file and apply the schema, or migrate an
existing database to the current schema version.

Example:
  writer initdb --db ./writer.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(opts.Database)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open database", err)
			}
			if err := st.Close(); err != nil {
				return WrapExitError(ExitCommandError, "failed to close database", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Database ready at %s\n", opts.Database)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}
