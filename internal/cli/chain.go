package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/claimgraph/internal/model"
	"github.com/ppiankov/claimgraph/internal/pipeline"
)

var chainJSON bool

// chainCmd represents the chain command
var chainCmd = &cobra.Command{
	Use:   "chain <registry> <claim-id>",
	Short: "Show the derivation chain of a claim",
	Long: `Chain prints the full derivation tree of one claim down to its leaves,
its depth, the axioms it rests on, and whether every leaf is an axiom.

Exit codes:
  0  the claim is rooted
  1  the claim is not rooted
  2  the registry failed to load or the claim is unknown

Example:
  claimgraph chain formulas.yaml C3
  claimgraph chain formulas.yaml C3 --json`,
	Args: cobra.ExactArgs(2),
	RunE: runChain,
}

func init() {
	rootCmd.AddCommand(chainCmd)

	chainCmd.Flags().BoolVar(&chainJSON, "json", false, "print the chain as JSON")
}

// chainOutput is the JSON form of a chain
type chainOutput struct {
	Claim          string   `json:"claim"`
	Rooted         bool     `json:"rooted"`
	Depth          int      `json:"depth"`
	Roots          []string `json:"roots"`
	MissingParents []string `json:"missing_parents,omitempty"`
	Tree           any      `json:"tree"`
}

func runChain(cmd *cobra.Command, args []string) error {
	registryPath, id := args[0], args[1]
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

	reg, err := pipeline.NewLoader(0, logger).LoadFormulas(registryPath)
	if reg == nil {
		return &ExitError{Code: 2, Err: err}
	}
	if err != nil {
		// Rejected claims are skipped; the chain of the rest still resolves
		fmt.Fprintf(stderr, "⚠ %v\n\n", err)
	}

	tree, err := reg.ResolveChain(id)
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}
	status, err := reg.Status(id)
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}
	rooted := status.Status == model.RootRooted

	if chainJSON {
		data, err := json.MarshalIndent(chainOutput{
			Claim:          id,
			Rooted:         rooted,
			Depth:          status.Depth,
			Roots:          nonNil(status.Roots),
			MissingParents: status.MissingParents,
			Tree:           tree,
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal chain: %w", err)
		}
		fmt.Fprintln(stdout, string(data))
	} else {
		fmt.Fprint(stdout, tree.String())
		fmt.Fprintln(stdout)
		fmt.Fprintf(stdout, "Depth:   %d\n", status.Depth)
		fmt.Fprintf(stdout, "Roots:   %s\n", joinOrNone(status.Roots))
		if len(status.MissingParents) > 0 {
			fmt.Fprintf(stdout, "Missing: %s\n", strings.Join(status.MissingParents, ", "))
		}
		if len(status.UnrootedLeaves) > 0 {
			fmt.Fprintf(stdout, "Leaves not established: %s\n", strings.Join(status.UnrootedLeaves, ", "))
		}
		fmt.Fprintf(stdout, "Rooted:  %s\n", yesNo(rooted))
	}

	if !rooted {
		return &ExitError{Code: 1}
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func joinOrNone(s []string) string {
	if len(s) == 0 {
		return "(none)"
	}
	return strings.Join(s, ", ")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
