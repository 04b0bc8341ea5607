package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tombstone/internal/dispatch"
	"github.com/roach88/tombstone/internal/ir"
	"github.com/roach88/tombstone/internal/policy"
	"github.com/roach88/tombstone/internal/rewrite"
	"github.com/roach88/tombstone/internal/sqlhost"
)

// ExecOptions holds flags for the exec command.
type ExecOptions struct {
	*RootOptions
	Database string
	Op       string
	Raw      bool // bypass the extension

	// IDGenerator allows overriding operation ids (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDGenerator dispatch.IDGenerator

	// Clock allows overriding the timestamp encoder's clock (for testing).
	// If nil, defaults to the system clock.
	Clock policy.Clock
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exec <config-dir>",
		Short: "Execute an operation against a SQLite database",
		Long: `Execute one operation through the soft-delete extension.

The database is created if it doesn't exist, with one table per declared
model. The operation file is YAML or JSON with model, verb and args keys.
With --raw the operation bypasses the extension, which is how marked rows
can be inspected or fixtures loaded.

Example:
  tombstone exec ./config --db ./app.db --op delete-user.yaml
  tombstone exec ./config --db ./app.db --op seed.json --raw
  tombstone exec ./config --db ./app.db --op fetch.yaml --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Op, "op", "", "path to the operation file (required)")
	cmd.Flags().BoolVar(&opts.Raw, "raw", false, "execute without the soft-delete extension")
	_ = cmd.MarkFlagRequired("db")
	_ = cmd.MarkFlagRequired("op")

	return cmd
}

func runExec(opts *ExecOptions, configDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	clock := opts.Clock
	if clock == nil {
		clock = policy.SystemClock{}
	}
	loaded, err := LoadConfig(configDir, clock)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	d, err := ReadOperation(opts.Op)
	if err != nil {
		return outputLoadError(formatter, err)
	}

	logger.Debug("opening database", "path", opts.Database)
	client, err := sqlhost.Open(opts.Database, loaded.Config.Facts)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	ids := opts.IDGenerator
	if ids == nil {
		ids = dispatch.UUIDv7Generator{}
	}
	engine := rewrite.NewEngine(loaded.Config.Policies, loaded.Config.Facts)
	dispatch.Register(client, engine, dispatch.WithLogger(logger), dispatch.WithIDGenerator(ids))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var result ir.IRValue
	if opts.Raw {
		logger.Debug("executing without extension", "model", d.Model, "verb", string(d.Verb))
		result, err = client.Invoke(ctx, d.Model, d.Verb, d.Args)
	} else {
		result, err = client.Do(ctx, d.Model, d.Verb, d.Args)
	}
	if err != nil {
		return outputOperationError(formatter, err)
	}

	out, err := ir.MarshalCanonical(result)
	if err != nil {
		return formatter.fail(ExitFailure, ErrCodeGeneric, err.Error(), nil)
	}
	if formatter.Format == "json" {
		return formatter.Success(json.RawMessage(out))
	}
	fmt.Fprintln(formatter.Writer, string(out))
	return nil
}
