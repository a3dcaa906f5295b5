// Package main provides the tophits CLI application entry point.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"tophits/internal/core"
	"tophits/internal/metrics"
	"tophits/internal/pipeline"
	"tophits/internal/spotify"
	"tophits/internal/store"
)

const envPrefix = "TOPHITS"

// Years outside this window are rejected before any range is expanded.
const (
	minYear = 1900
	maxYear = 2100
)

var (
	cfgFile   string
	config    *core.Config
	configErr error
	logger    *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "tophits",
	Short: "tophits - Spotify \"Top Hits of <year>\" to CSV",
	Long: `tophits finds the Spotify "Top Hits of <year>" playlist for each requested year,
enriches every track with its lead artist and writes one deduplicated CSV file.`,
	RunE:         runTopHits,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	defaultYears := fmt.Sprintf("%d-%d", core.DefaultFirstYear, core.DefaultLastYear)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().String("spotify-client-id", "", "Spotify client ID")
	rootCmd.PersistentFlags().String("spotify-client-secret", "", "Spotify client secret")
	rootCmd.PersistentFlags().Int("requests-per-minute", 0, "Maximum Spotify API calls per minute (0 disables throttling)")
	rootCmd.PersistentFlags().String("years", defaultYears, "Years to collect, as a range (2015-2024) or list (2019,2021)")
	rootCmd.PersistentFlags().Bool("debug", false, "Debug mode: only the debug year, truncated playlists, separate output file")
	rootCmd.PersistentFlags().Int("debug-year", core.DefaultDebugYear, "Year queried in debug mode")
	rootCmd.PersistentFlags().Int("sample-size", core.DefaultSampleSize, "Tracks kept per playlist in debug mode")
	rootCmd.PersistentFlags().String("output-dir", core.DefaultOutputDir, "Directory the CSV file is written to")
	rootCmd.PersistentFlags().String("output-file", core.DefaultOutputFile, "CSV file name for full runs")
	rootCmd.PersistentFlags().String("debug-output-file", core.DefaultDebugOutputFile, "CSV file name for debug runs")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (json, console)")
	rootCmd.PersistentFlags().String("metrics-file", "", "Write run metrics to this node_exporter textfile (disabled when empty)")
	rootCmd.PersistentFlags().String("run-log-path", "", "SQLite file recording every run (disabled when empty)")
	rootCmd.PersistentFlags().Int("history", 0, "Print the last N recorded runs from the run log and exit")
	rootCmd.PersistentFlags().Bool("generate-env-example", false, "Generate .env.example file from current configuration and exit")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}
}

func initConfig() {
	envFile := ".env"
	if cfgFile != "" {
		envFile = cfgFile
	}

	if err := gotenv.Load(envFile); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		}
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	config, configErr = buildConfig()
	logger = buildLogger(config.Log.Level, config.Log.Format)
}

func buildConfig() (*core.Config, error) {
	cfg := core.DefaultConfig()

	configureSpotify(cfg)
	configureOutput(cfg)
	configureObservability(cfg)

	if err := configurePipeline(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func configureSpotify(cfg *core.Config) {
	cfg.Spotify.ClientID = viper.GetString("spotify-client-id")
	cfg.Spotify.ClientSecret = viper.GetString("spotify-client-secret")
	cfg.Spotify.RequestsPerMinute = viper.GetInt("requests-per-minute")
}

func configurePipeline(cfg *core.Config) error {
	cfg.Pipeline.Debug = viper.GetBool("debug")
	cfg.Pipeline.DebugYear = viper.GetInt("debug-year")
	cfg.Pipeline.SampleSize = viper.GetInt("sample-size")

	years, err := parseYears(viper.GetString("years"))
	if err != nil {
		return err
	}
	cfg.Pipeline.Years = years
	return nil
}

func configureOutput(cfg *core.Config) {
	cfg.Output.Dir = viper.GetString("output-dir")
	cfg.Output.FileName = viper.GetString("output-file")
	cfg.Output.DebugFileName = viper.GetString("debug-output-file")
}

func configureObservability(cfg *core.Config) {
	cfg.Log.Level = viper.GetString("log-level")
	cfg.Log.Format = viper.GetString("log-format")
	cfg.Metrics.TextfilePath = viper.GetString("metrics-file")
	cfg.RunLog.Path = viper.GetString("run-log-path")
}

// parseYears accepts a comma separated list whose items are single years or
// inclusive ranges, e.g. "2015-2018,2020". Every year must lie within
// [minYear, maxYear].
func parseYears(raw string) ([]int, error) {
	var years []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if first, last, isRange := strings.Cut(part, "-"); isRange {
			lo, err := parseYear(first)
			if err != nil {
				return nil, fmt.Errorf("%w: invalid year range %q", core.ErrValidation, part)
			}
			hi, err := parseYear(last)
			if err != nil || hi < lo {
				return nil, fmt.Errorf("%w: invalid year range %q", core.ErrValidation, part)
			}
			for year := lo; year <= hi; year++ {
				years = append(years, year)
			}
			continue
		}

		year, err := parseYear(part)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid year %q", core.ErrValidation, part)
		}
		years = append(years, year)
	}
	return years, nil
}

func parseYear(raw string) (int, error) {
	year, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if year < minYear || year > maxYear {
		return 0, fmt.Errorf("year %d outside %d-%d", year, minYear, maxYear)
	}
	return year, nil
}

func buildLogger(level, format string) *zap.Logger {
	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	if strings.ToLower(format) == "console" {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	builtLogger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to build logger: %v", err))
	}

	return builtLogger
}

func runTopHits(cmd *cobra.Command, _ []string) error {
	if viper.GetBool("generate-env-example") {
		return generateEnvExample(cmd)
	}
	if viper.IsSet("history") {
		return showHistory(cmd.Context(), cmd.OutOrStdout(), config.RunLog.Path, viper.GetInt("history"))
	}

	defer func() { _ = logger.Sync() }()

	if configErr != nil {
		return fmt.Errorf("configuration validation failed: %w", configErr)
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := metrics.New()
	started := time.Now()

	result, runErr := pipeline.New(config, connectSpotify, logger.Named("pipeline"), m).Run(ctx)

	finished := time.Now()

	if config.Metrics.TextfilePath != "" {
		if err := m.WriteTextfile(config.Metrics.TextfilePath); err != nil {
			logger.Warn("Failed to write metrics textfile",
				zap.String("path", config.Metrics.TextfilePath), zap.Error(err))
		}
	}

	if config.RunLog.Path != "" {
		recordRun(started, finished, result, runErr)
	}

	return runErr
}

func connectSpotify(ctx context.Context, cfg *core.SpotifyConfig) (core.Catalog, error) {
	client, err := spotify.Connect(ctx, cfg, logger.Named("spotify"))
	if err != nil {
		return nil, err
	}
	return client, nil
}

// recordRun appends the run to the ledger. Ledger failures are logged and
// never change the exit status.
func recordRun(started, finished time.Time, result *pipeline.Result, runErr error) {
	// The run context may already be cancelled by a signal.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	runLog, err := store.OpenRunLog(ctx, config.RunLog.Path)
	if err != nil {
		logger.Warn("Failed to open run log", zap.String("path", config.RunLog.Path), zap.Error(err))
		return
	}
	defer runLog.Close()

	run := &store.Run{
		StartedAt:  started,
		FinishedAt: finished,
		Years:      config.EffectiveYears(),
		Debug:      config.Pipeline.Debug,
	}
	if result != nil {
		run.Playlists = result.Playlists
		run.Extracted = result.Extracted
		run.Retained = result.Retained
		run.OutputPath = result.Path
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}

	id, err := runLog.Record(ctx, run)
	if err != nil {
		logger.Warn("Failed to record run", zap.Error(err))
		return
	}
	logger.Debug("Run recorded", zap.Int64("id", id))
}

// showHistory prints the newest limit runs of the ledger at path.
func showHistory(ctx context.Context, w io.Writer, path string, limit int) error {
	if path == "" {
		return fmt.Errorf("%w: --history requires --run-log-path", core.ErrValidation)
	}
	if limit < 1 {
		return fmt.Errorf("%w: --history must be positive, got %d", core.ErrValidation, limit)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	runLog, err := store.OpenRunLog(ctx, path)
	if err != nil {
		return err
	}
	defer runLog.Close()

	runs, err := runLog.Recent(ctx, limit)
	if err != nil {
		return err
	}

	printHistory(w, runs)
	return nil
}

func printHistory(w io.Writer, runs []store.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return
	}

	for i := range runs {
		run := &runs[i]

		years := make([]string, len(run.Years))
		for j, year := range run.Years {
			years[j] = strconv.Itoa(year)
		}

		mode := "full"
		if run.Debug {
			mode = "debug"
		}

		status := "ok"
		if !run.Succeeded() {
			status = "failed: " + run.Error
		}

		fmt.Fprintf(w, "#%d  %s  %-5s  years=%s  playlists=%d  extracted=%d  retained=%d  took=%s  %s",
			run.ID,
			run.StartedAt.Format(time.RFC3339),
			mode,
			strings.Join(years, ","),
			run.Playlists, run.Extracted, run.Retained,
			run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond),
			status)
		if run.OutputPath != "" {
			fmt.Fprintf(w, "  -> %s", run.OutputPath)
		}
		fmt.Fprintln(w)
	}
}

func generateEnvExample(cmd *cobra.Command) error {
	fmt.Println("Generating .env.example file from current configuration...")

	content := generateEnvExampleContent(cmd)

	if err := os.WriteFile(".env.example", []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write .env.example: %w", err)
	}

	fmt.Println("Successfully generated .env.example file")
	return nil
}

func generateEnvExampleContent(cmd *cobra.Command) string {
	var content strings.Builder

	content.WriteString("# =============================================================================\n")
	content.WriteString("# tophits Configuration\n")
	content.WriteString("# =============================================================================\n")
	content.WriteString("#\n")
	content.WriteString("# Copy this file to .env and update with your values\n")
	content.WriteString("# All environment variables have CLI flag equivalents (use --help to see them)\n")
	content.WriteString("#\n")
	content.WriteString("# Format: TOPHITS_<SETTING>=value\n")
	content.WriteString("# CLI equivalent: --<setting>\n")
	content.WriteString("#\n\n")

	generateSpotifySection(&content)
	generatePipelineSection(&content, cmd)
	generateOutputSection(&content, cmd)
	generateObservabilitySection(&content, cmd)

	return content.String()
}

func flagToEnvVar(flagName string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

func getDefaultValueString(cmd *cobra.Command, flagName string) string {
	if f := cmd.PersistentFlags().Lookup(flagName); f != nil {
		return f.DefValue
	}
	return ""
}

func generateSpotifySection(content *strings.Builder) {
	content.WriteString("# =============================================================================\n")
	content.WriteString("# SPOTIFY CONFIGURATION - Required\n")
	content.WriteString("# =============================================================================\n")
	content.WriteString("# Get these from https://developer.spotify.com/dashboard\n")
	content.WriteString("# CLI: --spotify-client-id, --spotify-client-secret, --requests-per-minute\n")
	content.WriteString("\n")

	fmt.Fprintf(content, "%s=your_spotify_client_id_here          # Spotify app client ID\n",
		flagToEnvVar("spotify-client-id"))
	fmt.Fprintf(content, "%s=your_spotify_client_secret_here  # Spotify app client secret\n",
		flagToEnvVar("spotify-client-secret"))
	fmt.Fprintf(content, "%s=0                      # Max API calls per minute, 0=unlimited\n",
		flagToEnvVar("requests-per-minute"))
	content.WriteString("\n")
}

func generatePipelineSection(content *strings.Builder, cmd *cobra.Command) {
	content.WriteString("# -----------------------------------------------------------------------------\n")
	content.WriteString("# Pipeline\n")
	content.WriteString("# -----------------------------------------------------------------------------\n")
	content.WriteString("# CLI: --years, --debug, --debug-year, --sample-size\n")

	for _, name := range []string{"years", "debug", "debug-year", "sample-size"} {
		def := getDefaultValueString(cmd, name)
		fmt.Fprintf(content, "%s=%s  # (default: %s)\n", flagToEnvVar(name), def, def)
	}
	content.WriteString("\n")
}

func generateOutputSection(content *strings.Builder, cmd *cobra.Command) {
	content.WriteString("# -----------------------------------------------------------------------------\n")
	content.WriteString("# Output\n")
	content.WriteString("# -----------------------------------------------------------------------------\n")
	content.WriteString("# CLI: --output-dir, --output-file, --debug-output-file\n")

	for _, name := range []string{"output-dir", "output-file", "debug-output-file"} {
		def := getDefaultValueString(cmd, name)
		fmt.Fprintf(content, "%s=%s  # (default: %s)\n", flagToEnvVar(name), def, def)
	}
	content.WriteString("\n")
}

func generateObservabilitySection(content *strings.Builder, cmd *cobra.Command) {
	content.WriteString("# -----------------------------------------------------------------------------\n")
	content.WriteString("# Logging, metrics and run history\n")
	content.WriteString("# -----------------------------------------------------------------------------\n")
	content.WriteString("# CLI: --log-level, --log-format, --metrics-file, --run-log-path\n")

	logDefault := getDefaultValueString(cmd, "log-level")
	formatDefault := getDefaultValueString(cmd, "log-format")

	fmt.Fprintf(content, "%s=%s          # Log level: debug, info, warn, error (default: %s)\n",
		flagToEnvVar("log-level"), logDefault, logDefault)
	fmt.Fprintf(content, "%s=%s          # Log format: json, console (default: %s)\n",
		flagToEnvVar("log-format"), formatDefault, formatDefault)
	fmt.Fprintf(content, "# %s=/var/lib/node_exporter/textfile/tophits.prom\n",
		flagToEnvVar("metrics-file"))
	fmt.Fprintf(content, "# %s=./tophits_runs.db\n",
		flagToEnvVar("run-log-path"))
	content.WriteString("\n")
}
