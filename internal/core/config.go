package core

import (
	"fmt"
	"path/filepath"
)

const (
	// DefaultFirstYear is the first year queried when no years are configured
	DefaultFirstYear = 2015
	// DefaultLastYear is the last year queried when no years are configured
	DefaultLastYear = 2024
	// DefaultDebugYear is the only year queried in debug mode
	DefaultDebugYear = 2024
	// DefaultSampleSize caps tracks processed per playlist in debug mode
	DefaultSampleSize = 10
	// DefaultOutputDir is the directory the CSV is written to
	DefaultOutputDir = "data"
	// DefaultOutputFile is the CSV file name for full runs
	DefaultOutputFile = "top_hits.csv"
	// DefaultDebugOutputFile is the CSV file name for debug runs
	DefaultDebugOutputFile = "top_hits_debug.csv"
)

type Config struct {
	Spotify  SpotifyConfig
	Pipeline PipelineConfig
	Output   OutputConfig
	Log      LogConfig
	Metrics  MetricsConfig
	RunLog   RunLogConfig
}

// SpotifyConfig holds the client-credentials pair used to obtain an app token.
type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	// RequestsPerMinute caps catalog calls. Zero disables the throttle.
	RequestsPerMinute int
}

type PipelineConfig struct {
	Years      []int
	Debug      bool
	DebugYear  int
	SampleSize int
}

type OutputConfig struct {
	Dir           string
	FileName      string
	DebugFileName string
}

type LogConfig struct {
	Level  string
	Format string
}

type MetricsConfig struct {
	// TextfilePath is where the run's metrics are written for node_exporter.
	// Empty disables the export.
	TextfilePath string
}

type RunLogConfig struct {
	// Path of the SQLite run ledger. Empty disables it.
	Path string
}

func DefaultConfig() *Config {
	years := make([]int, 0, DefaultLastYear-DefaultFirstYear+1)
	for y := DefaultFirstYear; y <= DefaultLastYear; y++ {
		years = append(years, y)
	}

	return &Config{
		Pipeline: PipelineConfig{
			Years:      years,
			DebugYear:  DefaultDebugYear,
			SampleSize: DefaultSampleSize,
		},
		Output: OutputConfig{
			Dir:           DefaultOutputDir,
			FileName:      DefaultOutputFile,
			DebugFileName: DefaultDebugOutputFile,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// EffectiveYears returns the years the run will query. Debug mode collapses
// the set to the single debug year.
func (c *Config) EffectiveYears() []int {
	if c.Pipeline.Debug {
		return []int{c.Pipeline.DebugYear}
	}
	return c.Pipeline.Years
}

// OutputFileName returns the file name the run will write.
func (c *Config) OutputFileName() string {
	if c.Pipeline.Debug {
		return c.Output.DebugFileName
	}
	return c.Output.FileName
}

// OutputPath returns the full destination path of the CSV.
func (c *Config) OutputPath() string {
	return filepath.Join(c.Output.Dir, c.OutputFileName())
}

func (c *Config) Validate() error {
	if c.Spotify.ClientID == "" {
		return fmt.Errorf("%w: spotify client ID is required", ErrValidation)
	}

	if c.Spotify.ClientSecret == "" {
		return fmt.Errorf("%w: spotify client secret is required", ErrValidation)
	}

	if len(c.EffectiveYears()) == 0 {
		return fmt.Errorf("%w: at least one year is required", ErrValidation)
	}

	if c.Pipeline.Debug && c.Pipeline.SampleSize <= 0 {
		return fmt.Errorf("%w: sample size must be positive, got %d", ErrValidation, c.Pipeline.SampleSize)
	}

	if c.Spotify.RequestsPerMinute < 0 {
		return fmt.Errorf("%w: requests per minute must not be negative", ErrValidation)
	}

	if c.OutputFileName() == "" {
		return fmt.Errorf("%w: output file name is required", ErrValidation)
	}

	return nil
}
