package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ppiankov/claimgraph/internal/model"
	"github.com/ppiankov/claimgraph/internal/pipeline"
)

// Version is the claimgraph release
const Version = "v0.1.0"

var (
	cfgFile string
	verbose bool
	noColor bool

	// Effective configuration and logger, set before every command runs
	cfg    = model.DefaultConfig()
	logger = zap.NewNop()
)

// ExitError carries a process exit code out of a command. Err may be nil
// when the command already reported its outcome.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "claimgraph",
	Short: "claimgraph - Parameter provenance and claim derivation auditing",
	Long: `claimgraph keeps the numbers quoted in a body of documents traceable
to a single parameter store, and the claims behind them traceable to
established axioms.

It renders {category.name} directives from the store, records a manifest of
every resolution, and audits the store, the formula registry and the
manifests against each other.

claimgraph reports what is derived from what. It does not judge whether a
derivation is correct.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig()
		if err != nil {
			return err
		}
		cfg = c

		l, err := newLogger(cfg.Output.Verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number of claimgraph.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "claimgraph %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.claimgraph/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable styled output")

	// Bind flags to viper
	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		// Search for config in home directory
		viper.AddConfigPath(filepath.Join(home, ".claimgraph"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	setDefaults(model.DefaultConfig())

	// Read in environment variables that match CLAIMGRAPH_*, with dots in
	// keys mapped to underscores (render.workers -> CLAIMGRAPH_RENDER_WORKERS)
	viper.SetEnvPrefix("CLAIMGRAPH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// setDefaults registers every key so env overrides reach viper.Unmarshal
func setDefaults(d *model.Config) {
	viper.SetDefault("render.workers", d.Render.Workers)
	viper.SetDefault("render.extensions", d.Render.Extensions)
	viper.SetDefault("render.tooltip_markup", d.Render.TooltipMarkup)
	viper.SetDefault("render.timeout", d.Render.Timeout)

	viper.SetDefault("cache.enabled", d.Cache.Enabled)
	viper.SetDefault("cache.dir", d.Cache.Dir)
	viper.SetDefault("cache.ttl", d.Cache.TTL)
	viper.SetDefault("cache.memory_ttl", d.Cache.MemoryTTL)

	viper.SetDefault("audit.require_full_coverage", d.Audit.RequireFullCoverage)
	viper.SetDefault("audit.alias_tolerance", d.Audit.AliasTolerance)

	viper.SetDefault("output.verbose", d.Output.Verbose)
	viper.SetDefault("output.report_json", d.Output.ReportJSON)
	viper.SetDefault("output.report_md", d.Output.ReportMD)
	viper.SetDefault("output.color", d.Output.Color)
}

// loadConfig builds the effective configuration from defaults, the config
// file and the environment
func loadConfig() (*model.Config, error) {
	c := model.DefaultConfig()
	if err := viper.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("parse configuration: %w", err)
	}
	if noColor {
		c.Output.Color = false
	}
	return c, nil
}

// newLogger builds the structured logger. Only warnings are printed unless
// debug is set.
func newLogger(debug bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.Encoding = "console"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if debug {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return config.Build()
}

// newRenderer styles output only when w is a terminal and color is enabled
func newRenderer(w io.Writer) *pipeline.Renderer {
	f, ok := w.(*os.File)
	return pipeline.NewRenderer(ok && pipeline.ColorEnabled(f, cfg.Output.Color))
}

func banner(w io.Writer, title string) {
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "  %s\n", title)
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "\n")
}
