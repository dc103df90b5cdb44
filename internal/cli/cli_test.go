package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/claimgraph/internal/model"
)

const paramsYAML = `
parameters:
  gut:
    alpha_inv:
      value: 23.54
      format: fixed:2
    n_gen:
      value: 3
      format: integer
  cosmo:
    h0:
      value: 67.4
      unit: km/s/Mpc
      format: fixed:1
`

const formulasYAML = `
claims:
  - id: C1
    tier: axiom
    plain_text: SU(5) unification
    citations:
      - {authors: "Georgi, Glashow", year: 1974, locator: "PRL 32, 438"}
  - id: C3
    tier: prediction
    parents: [C1]
    derivation_steps: [run couplings, match at M_GUT]
    bound_params: [gut.alpha_inv]
    verification_ref: notebooks/c3.ipynb
`

const orphanFormulasYAML = formulasYAML + `
  - id: C5
    tier: derived
    parents: [C9]
    bound_params: [gut.n_gen]
`

// resetFlags restores every flag of cmd and its children to its default
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// execute runs the command tree in an isolated home directory
func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CLAIMGRAPH_CACHE_ENABLED", "false")
	t.Setenv("NO_COLOR", "1")

	resetFlags(rootCmd)
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err = Execute()
	return out.String(), errOut.String(), err
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr), "expected *ExitError, got %v", err)
	return exitErr.Code
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

type fixture struct {
	dir, docs, params, formulas, out string
}

func newFixture(t *testing.T, formulas string) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		dir:      dir,
		docs:     filepath.Join(dir, "docs"),
		params:   writeFile(t, dir, "params.yaml", paramsYAML),
		formulas: writeFile(t, dir, "formulas.yaml", formulas),
		out:      filepath.Join(dir, "site"),
	}
	writeFile(t, f.docs, "paper.md", "alpha = {gut.alpha_inv, tooltip=C3}\n")
	writeFile(t, f.docs, "notes/h0.md", "H0 = {cosmo.h0, unit=true}\n")
	return f
}

func TestRender_Success(t *testing.T) {
	f := newFixture(t, formulasYAML)

	_, stderr, err := execute(t, "render", f.docs, f.params, f.formulas, "--out-dir", f.out, "--workers", "2")
	require.NoError(t, err, stderr)

	data, err := os.ReadFile(filepath.Join(f.out, "paper.md"))
	require.NoError(t, err)
	assert.Equal(t, "alpha = 23.54\n", string(data))

	data, err = os.ReadFile(filepath.Join(f.out, "notes", "h0.md"))
	require.NoError(t, err)
	assert.Equal(t, "H0 = 67.4 km/s/Mpc\n", string(data))

	var collection model.ManifestCollection
	data, err = os.ReadFile(filepath.Join(f.out, "manifest.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &collection))
	require.Len(t, collection.Manifests, 2)
	assert.Equal(t, "notes/h0.md", collection.Manifests[0].Document)
	assert.True(t, collection.OK())
	assert.Contains(t, stderr, "PASS")
}

func TestRender_UnresolvedDirectiveExitsOne(t *testing.T) {
	f := newFixture(t, formulasYAML)
	writeFile(t, f.docs, "broken.md", "{gut.missing}")

	_, _, err := execute(t, "render", f.docs, f.params, f.formulas, "--out-dir", f.out)
	assert.Equal(t, 1, exitCode(t, err))

	data, err := os.ReadFile(filepath.Join(f.out, "broken.md"))
	require.NoError(t, err)
	assert.Equal(t, "⟦unresolved:{gut.missing}⟧", string(data))
	assert.FileExists(t, filepath.Join(f.out, "paper.md"))
}

func TestRender_IngestionFailureExitsTwo(t *testing.T) {
	f := newFixture(t, formulasYAML)
	bad := writeFile(t, f.dir, "bad.yaml", "parameters:\n  gut:\n    alpha_inv:\n      unit: none\n")

	_, _, err := execute(t, "render", f.docs, bad, f.formulas, "--out-dir", f.out)
	assert.Equal(t, 2, exitCode(t, err))
	assert.NoDirExists(t, f.out)
}

func TestRender_FilesFrom(t *testing.T) {
	f := newFixture(t, formulasYAML)
	list := writeFile(t, f.dir, "changed.txt", "# only the notes\nnotes/h0.md\n")

	_, _, err := execute(t, "render", f.docs, f.params, f.formulas, "--out-dir", f.out, "--files-from", list)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(f.out, "notes", "h0.md"))
	assert.NoFileExists(t, filepath.Join(f.out, "paper.md"))
}

func TestRender_FilesFromCannotOverwriteSources(t *testing.T) {
	f := newFixture(t, formulasYAML)
	readme := writeFile(t, f.dir, "README.md", "{gut.alpha_inv}")
	list := writeFile(t, f.dir, "changed.txt", "paper.md\n../README.md\n")

	// docs and site are siblings, so site/../README.md is the source itself
	_, _, err := execute(t, "render", f.docs, f.params, f.formulas, "--out-dir", f.out, "--files-from", list)
	assert.Equal(t, 1, exitCode(t, err))

	data, err := os.ReadFile(readme)
	require.NoError(t, err)
	assert.Equal(t, "{gut.alpha_inv}", string(data))
	assert.FileExists(t, filepath.Join(f.out, "paper.md"))
}

func TestAudit_RenderedManifestPasses(t *testing.T) {
	f := newFixture(t, formulasYAML)
	_, _, err := execute(t, "render", f.docs, f.params, f.formulas, "--out-dir", f.out)
	require.NoError(t, err)

	reportPath := filepath.Join(f.dir, "audit.json")
	mdPath := filepath.Join(f.dir, "audit.md")
	_, stderr, err := execute(t, "audit", f.params, f.formulas, filepath.Join(f.out, "manifest.json"),
		"--json", reportPath, "--md", mdPath)
	require.NoError(t, err, stderr)

	var report model.AuditReport
	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, model.AuditPass, report.Status)
	assert.Equal(t, 2, report.Documents)
	assert.Equal(t, 2, report.Directives)
	assert.FileExists(t, mdPath)
}

func TestAudit_UnrootedClaimFails(t *testing.T) {
	f := newFixture(t, orphanFormulasYAML)
	reportPath := filepath.Join(f.dir, "audit.json")

	_, _, err := execute(t, "audit", f.params, f.formulas, "--json", reportPath)
	assert.Equal(t, 1, exitCode(t, err))
	assert.FileExists(t, reportPath)
}

func TestAudit_IngestionFailureIsReported(t *testing.T) {
	f := newFixture(t, formulasYAML)
	reportPath := filepath.Join(f.dir, "audit.json")

	_, _, err := execute(t, "audit", filepath.Join(f.dir, "missing.yaml"), f.formulas, "--json", reportPath)
	assert.Equal(t, 1, exitCode(t, err))

	var report model.AuditReport
	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &report))
	require.NotEmpty(t, report.Ingestion)
	assert.Equal(t, "missing.yaml", report.Ingestion[0].Item)
}

func TestDiff(t *testing.T) {
	f := newFixture(t, formulasYAML)
	changed := writeFile(t, f.dir, "params.v2.yaml", `
parameters:
  gut:
    alpha_inv:
      value: 23.60
      format: fixed:2
  cosmo:
    h0:
      value: 67.4
      unit: km/s/Mpc
      format: fixed:1
    omega_m:
      value: 0.315
`)

	stdout, _, err := execute(t, "diff", f.params, f.params)
	assert.Equal(t, 0, exitCode(t, err))
	assert.Contains(t, stdout, "No parameter changes")

	jsonPath := filepath.Join(f.dir, "changes.json")
	stdout, _, err = execute(t, "diff", f.params, changed, "--json", jsonPath)
	assert.Equal(t, 1, exitCode(t, err))
	assert.Contains(t, stdout, "+ cosmo.omega_m = 0.315")
	assert.Contains(t, stdout, "~ gut.alpha_inv: 23.54 -> 23.6")
	assert.Contains(t, stdout, "- gut.n_gen = 3")
	assert.Contains(t, stdout, "3 changes")

	var changes []model.ParameterChange
	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &changes))
	assert.Len(t, changes, 3)

	_, _, err = execute(t, "diff", f.params, filepath.Join(f.dir, "missing.yaml"))
	assert.Equal(t, 2, exitCode(t, err))
}

func TestChain(t *testing.T) {
	f := newFixture(t, orphanFormulasYAML)

	stdout, _, err := execute(t, "chain", f.formulas, "C3")
	require.NoError(t, err)
	assert.Contains(t, stdout, "C3 [prediction]\n  C1 [axiom]\n")
	assert.Contains(t, stdout, "Depth:   1")
	assert.Contains(t, stdout, "Roots:   C1")
	assert.Contains(t, stdout, "Rooted:  yes")

	stdout, _, err = execute(t, "chain", f.formulas, "C5")
	assert.Equal(t, 1, exitCode(t, err))
	assert.Contains(t, stdout, "C9 (missing)")
	assert.Contains(t, stdout, "Rooted:  no")

	_, _, err = execute(t, "chain", f.formulas, "C42")
	assert.Equal(t, 2, exitCode(t, err))
}

func TestChain_JSON(t *testing.T) {
	f := newFixture(t, formulasYAML)

	stdout, _, err := execute(t, "chain", f.formulas, "C3", "--json")
	require.NoError(t, err)

	var out struct {
		Claim  string   `json:"claim"`
		Rooted bool     `json:"rooted"`
		Depth  int      `json:"depth"`
		Roots  []string `json:"roots"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, "C3", out.Claim)
	assert.True(t, out.Rooted)
	assert.Equal(t, 1, out.Depth)
	assert.Equal(t, []string{"C1"}, out.Roots)
}

func TestVersion(t *testing.T) {
	stdout, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "claimgraph "+Version+"\n", stdout)
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".claimgraph", "config.yaml")
	require.NoError(t, writeDefaultConfig(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "render:")
	assert.Contains(t, string(data), "tooltip_markup: true")

	assert.Error(t, writeDefaultConfig(path), "existing config must not be overwritten")
}

func TestExitError(t *testing.T) {
	inner := errors.New("boom")
	err := &ExitError{Code: 2, Err: inner}
	assert.Equal(t, "boom", err.Error())
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "exit status 1", (&ExitError{Code: 1}).Error())
}
