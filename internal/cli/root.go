// Package cli implements workoutctl, an operator tool that drives the open
// session directly against the store. It runs recovery itself, so it must not
// be used while the server is running against the same database.
package cli

import (
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"workout/backend/internal/config"
)

// Exit codes for workoutctl.
const (
	ExitSuccess      = 0
	ExitRejected     = 1 // the runtime refused the command
	ExitCommandError = 2 // bad flags, unreadable store
)

var ValidFormats = []string{"text", "json"}

// RootOptions holds the global flags. Defaults come from the server's
// environment so both binaries find the same store.
type RootOptions struct {
	DBPath        string
	MigrationsDir string
	HandlePath    string
	CatalogPath   string
	Format        string
	Verbose       bool
}

func NewRootCommand() *cobra.Command {
	cfg := config.Load()
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "workoutctl",
		Short:         "Inspect and drive the open workout session",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return &ExitError{
					Code:    ExitCommandError,
					Message: fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats),
				}
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.DBPath, "db", cfg.DBPath, "sqlite database path")
	flags.StringVar(&opts.MigrationsDir, "migrations", cfg.MigrationsDir, "migrations directory")
	flags.StringVar(&opts.HandlePath, "handle", cfg.HandlePath, "active session handle file")
	flags.StringVar(&opts.CatalogPath, "catalog", cfg.CatalogPath, "exercise catalog YAML (embedded default when empty)")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "log runtime activity to stderr")

	cmd.AddCommand(
		newStatusCommand(opts),
		newPauseCommand(opts),
		newResumeCommand(opts),
		newCompleteCommand(opts),
		newSkipCommand(opts),
		newFinishCommand(opts),
		newTransitionsCommand(opts),
	)
	return cmd
}

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}
