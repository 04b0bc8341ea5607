package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tombstone/internal/harness"
	"github.com/roach88/tombstone/internal/ir"
	"github.com/roach88/tombstone/internal/policy"
	"github.com/roach88/tombstone/internal/rewrite"
)

// RewriteOptions holds flags for the rewrite command.
type RewriteOptions struct {
	*RootOptions
	Op string
}

// RewriteResult is the rewritten form of one operation.
type RewriteResult struct {
	Model    string          `json:"model"`
	Verb     string          `json:"verb"`
	Args     json.RawMessage `json:"args"`
	Changed  bool            `json:"changed"`
	Injected []string        `json:"injected,omitempty"` // relation paths carrying an injected marker
}

// NewRewriteCommand creates the rewrite command.
func NewRewriteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RewriteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "rewrite <config-dir>",
		Short: "Show how an operation is rewritten",
		Long: `Rewrite one operation without executing it.

The operation file is YAML or JSON with model, verb and args keys. The
rewritten operation is printed as canonical JSON, followed by the relation
paths where the marker field was injected into a select.

Example:
  tombstone rewrite ./config --op delete-user.yaml
  tombstone rewrite ./config --op fetch.json --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRewrite(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Op, "op", "", "path to the operation file (required)")
	_ = cmd.MarkFlagRequired("op")

	return cmd
}

func runRewrite(opts *RewriteOptions, configDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	loaded, err := LoadConfig(configDir, policy.SystemClock{})
	if err != nil {
		return outputLoadError(formatter, err)
	}
	d, err := ReadOperation(opts.Op)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	formatter.VerboseLog("Rewriting %s.%s", d.Model, d.Verb)

	engine := rewrite.NewEngine(loaded.Config.Policies, loaded.Config.Facts)
	out, err := engine.Rewrite(d)
	if err != nil {
		return outputOperationError(formatter, err)
	}

	args, err := ir.MarshalCanonical(out.Descriptor.Args)
	if err != nil {
		return formatter.fail(ExitFailure, ErrCodeOperation, err.Error(), nil)
	}
	result := RewriteResult{
		Model:   out.Descriptor.Model,
		Verb:    string(out.Descriptor.Verb),
		Args:    args,
		Changed: out.VerbChanged(d) || !ir.Equal(d.Args, out.Descriptor.Args),
	}
	if out.SideChannel != nil {
		result.Injected = out.SideChannel.Paths
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "%s.%s %s\n", result.Model, result.Verb, result.Args)
	if !result.Changed {
		fmt.Fprintln(w, "(unchanged)")
	}
	for _, path := range result.Injected {
		fmt.Fprintf(w, "marker injected: %s\n", path)
	}
	return nil
}

// outputOperationError reports an operation the extension refused or the
// store failed. Both are operation failures (exit code 1) coded the way
// scenario expectations are.
func outputOperationError(formatter *OutputFormatter, err error) error {
	return formatter.fail(ExitFailure, harness.ErrorCode(err), err.Error(), nil)
}
