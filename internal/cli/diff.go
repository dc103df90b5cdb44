package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ppiankov/claimgraph/internal/model"
	"github.com/ppiankov/claimgraph/internal/params"
	"github.com/ppiankov/claimgraph/internal/pipeline"
)

var diffJSON string

// diffCmd represents the diff command
var diffCmd = &cobra.Command{
	Use:   "diff <old-store> <new-store>",
	Short: "List parameter changes between two stores",
	Long: `Diff compares two parameter definition files and lists every added,
removed and modified parameter, with the numeric delta of modified values.
Use it to catch regressions before re-rendering.

Exit codes:
  0  the stores are identical
  1  changes exist
  2  a store failed to load

Example:
  claimgraph diff params.v1.yaml params.v2.yaml
  claimgraph diff params.v1.yaml params.v2.yaml --json changes.json`,
	Args: cobra.ExactArgs(2),
	RunE: runDiff,
}

func init() {
	rootCmd.AddCommand(diffCmd)

	diffCmd.Flags().StringVar(&diffJSON, "json", "", "write the changes as JSON to this path")
}

func runDiff(cmd *cobra.Command, args []string) error {
	loader := pipeline.NewLoader(0, logger)
	opt := params.WithAliasTolerance(cfg.Audit.AliasTolerance)

	previous, err := loader.LoadParameters(args[0], opt)
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}
	current, err := loader.LoadParameters(args[1], opt)
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}

	changes := current.Diff(previous)
	if changes == nil {
		changes = []model.ParameterChange{}
	}

	if diffJSON != "" {
		if err := pipeline.WriteJSON(diffJSON, changes); err != nil {
			return err
		}
	}

	printChanges(cmd.OutOrStdout(), changes)

	if len(changes) > 0 {
		return &ExitError{Code: 1}
	}
	return nil
}

func printChanges(w io.Writer, changes []model.ParameterChange) {
	if len(changes) == 0 {
		fmt.Fprintln(w, "No parameter changes")
		return
	}

	for _, c := range changes {
		switch c.Kind {
		case model.ChangeAdded:
			fmt.Fprintf(w, "+ %s = %s\n", c.Path, formatValue(c.Current))
		case model.ChangeRemoved:
			fmt.Fprintf(w, "- %s = %s\n", c.Path, formatValue(c.Previous))
		case model.ChangeModified:
			line := fmt.Sprintf("~ %s: %s -> %s", c.Path, formatValue(c.Previous), formatValue(c.Current))
			if c.Delta != nil {
				line += fmt.Sprintf(" (delta %s)", strconv.FormatFloat(*c.Delta, 'g', -1, 64))
			}
			fmt.Fprintln(w, line)
		}
	}
	fmt.Fprintf(w, "\n%d changes\n", len(changes))
}

func formatValue(v *model.ParameterValue) string {
	if v == nil {
		return "-"
	}
	s := strconv.FormatFloat(v.Value, 'g', -1, 64)
	if v.Unit != "" {
		s += " " + v.Unit
	}
	return s
}
