package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/awareness/internal/detect"
	"github.com/roach88/awareness/internal/snapshot"
	"github.com/roach88/awareness/internal/world"
)

// DiffResult is the JSON payload of the diff command.
type DiffResult struct {
	Previous int64                 `json:"previous_version"`
	Current  int64                 `json:"current_version"`
	Changes  []world.Change        `json:"changes"`
	Warnings []detect.FieldWarning `json:"warnings,omitempty"`
}

// NewDiffCommand creates the diff command.
func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "diff <previous> <current>",
		Short: "Detect changes between two snapshot files",
		Long: `Run change detection over two snapshot files and print the changes
found, in the order a cycle would process them. Malformed fields are
reported as warnings and skipped.

Examples:
  awareness diff snapshots/0001.yaml snapshots/0002.yaml
  awareness diff prev.json cur.json --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(rootOpts, args[0], args[1], cmd)
		},
	}
}

func runDiff(opts *RootOptions, prevPath, curPath string, cmd *cobra.Command) error {
	prev, err := snapshot.LoadFile(prevPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load previous snapshot", err)
	}
	cur, err := snapshot.LoadFile(curPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load current snapshot", err)
	}

	res := detect.Detect(prev, cur)
	out := DiffResult{
		Previous: prev.Version,
		Current:  cur.Version,
		Changes:  res.Changes,
		Warnings: res.Warnings,
	}
	if out.Changes == nil {
		out.Changes = []world.Change{}
	}

	return opts.formatter(cmd).Emit(out, func(w io.Writer) {
		writeDiffText(w, out)
	})
}

func writeDiffText(w io.Writer, d DiffResult) {
	fmt.Fprintf(w, "v%d -> v%d: %d change(s)\n", d.Previous, d.Current, len(d.Changes))
	for _, ch := range d.Changes {
		fmt.Fprintf(w, "  [%s] %s/%s: %s\n", ch.Impact, ch.Category, ch.Subcategory, ch.Description)
	}
	for _, warn := range d.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warn.Error())
	}
}
