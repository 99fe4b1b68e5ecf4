// Package config loads the engine's runtime configuration from flags and
// environment variables (no config file is read), following the
// pack-wide convention of binding cobra flags into a viper instance (see
// untoldecay-BeadsLog's internal/config) rather than threading flag values
// through call sites by hand.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is every knob the engine needs for one migration run.
type Config struct {
	RootEntityID            string
	TargetStorageLocationID int64
	CheckpointPath           string

	FileVersionStrategy string
	TableStrategy        string

	DryRun          bool
	ContinueOnError bool
	Concurrency     int
	BatchSize       int

	RateLimitPerSecond float64
	RateLimitBurst     int

	ExportCSVPath string

	LogLevel string
	LogPath  string
}

// Load builds a Config from flags already registered on fs, applying
// environment variable overrides (prefixed ENTITYVAULT_MIGRATOR) and
// defaults for anything left unset.
func Load(fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ENTITYVAULT_MIGRATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return Config{}, fmt.Errorf("binding flags: %w", err)
	}

	cfg := Config{
		RootEntityID:            v.GetString("entity"),
		TargetStorageLocationID: v.GetInt64("storage-location"),
		CheckpointPath:          v.GetString("checkpoint-db"),
		FileVersionStrategy:     v.GetString("file-version-strategy"),
		TableStrategy:           v.GetString("table-strategy"),
		DryRun:                  v.GetBool("dry-run"),
		ContinueOnError:         v.GetBool("continue-on-error"),
		Concurrency:             v.GetInt("concurrency"),
		BatchSize:               v.GetInt("batch-size"),
		RateLimitPerSecond:      v.GetFloat64("rate-limit"),
		RateLimitBurst:          v.GetInt("rate-limit-burst"),
		ExportCSVPath:           v.GetString("export"),
		LogLevel:                v.GetString("log-level"),
		LogPath:                 v.GetString("log-path"),
	}
	return cfg, nil
}

// RegisterFlags declares every flag Load understands, with the engine's
// defaults.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("entity", "", "id of the root entity to migrate (project or folder)")
	fs.Int64("storage-location", 0, "destination storage location id")
	fs.String("checkpoint-db", "migration.db", "path to the checkpoint database")
	fs.String("file-version-strategy", "", "file version strategy: new, all, latest, or empty to skip files")
	fs.String("table-strategy", "", "table strategy: snapshot, nosnapshot, or empty to skip tables")
	fs.Bool("dry-run", true, "index only, do not migrate anything")
	fs.Bool("continue-on-error", false, "continue indexing/migrating past individual entity errors")
	fs.Int("concurrency", 10, "size of the shared worker pool")
	fs.Int("batch-size", 500, "checkpoint scan batch size used by the migration phase")
	fs.Float64("rate-limit", 0, "remote calls per second, 0 disables rate limiting")
	fs.Int("rate-limit-burst", 1, "token bucket burst size")
	fs.String("export", "", "path to export a CSV of migration results, empty to skip")
	fs.String("log-level", "info", "log level: trace, debug, info, warn, error")
	fs.String("log-path", "", "log file path, empty logs to stderr")
}
