// Package config builds the process-wide immutable Configuration snapshot
// by layering a TOML file, environment variables, and CLI flags, mirroring
// the teacher's internal/config/settings.go + cli root.go initConfig idiom.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/subx-cli/subx/internal/core"
)

// AI holds the matcher's provider configuration.
type AI struct {
	Provider        string  `mapstructure:"provider"`
	APIKey          string  `mapstructure:"api_key"`
	Model           string  `mapstructure:"model"`
	BaseURL         string  `mapstructure:"base_url"`
	Temperature     float64 `mapstructure:"temperature"`
	MaxSampleLength int     `mapstructure:"max_sample_length"`
	RetryAttempts   int     `mapstructure:"retry_attempts"`
	RetryDelayMs    int     `mapstructure:"retry_delay_ms"`
}

// VAD holds the speech detector's tuning knobs.
type VAD struct {
	Enabled             bool    `mapstructure:"enabled"`
	Sensitivity         float64 `mapstructure:"sensitivity"`
	ChunkSize           int     `mapstructure:"chunk_size"`
	SampleRate          int     `mapstructure:"sample_rate"`
	PaddingChunks       int     `mapstructure:"padding_chunks"`
	MinSpeechDurationMs int     `mapstructure:"min_speech_duration_ms"`
	SpeechMergeGapMs    int     `mapstructure:"speech_merge_gap_ms"`
}

// Sync holds the synchronizer's top-level policy.
type Sync struct {
	DefaultMethod     string  `mapstructure:"default_method"`
	MaxOffsetSeconds  float64 `mapstructure:"max_offset_seconds"`
	VAD               VAD     `mapstructure:"vad"`
}

// General holds cross-cutting runtime policy.
type General struct {
	BackupEnabled          bool `mapstructure:"backup_enabled"`
	MaxConcurrentJobs      int  `mapstructure:"max_concurrent_jobs"`
	TaskTimeoutSeconds     int  `mapstructure:"task_timeout_seconds"`
	EnableProgressBar      bool `mapstructure:"enable_progress_bar"`
	WorkerIdleTimeoutSecs  int  `mapstructure:"worker_idle_timeout_seconds"`
}

// Parallel holds the scheduler's worker-pool tuning.
type Parallel struct {
	MaxWorkers           int    `mapstructure:"max_workers"`
	TaskQueueSize        int    `mapstructure:"task_queue_size"`
	EnableTaskPriorities bool   `mapstructure:"enable_task_priorities"`
	AutoBalanceWorkers   bool   `mapstructure:"auto_balance_workers"`
	OverflowStrategy     string `mapstructure:"overflow_strategy"`
}

// Formats holds subtitle format defaults.
type Formats struct {
	DefaultOutput                string  `mapstructure:"default_output"`
	PreserveStyling               bool    `mapstructure:"preserve_styling"`
	DefaultEncoding               string  `mapstructure:"default_encoding"`
	EncodingDetectionConfidence   float64 `mapstructure:"encoding_detection_confidence"`
}

// Snapshot is the immutable, process-wide configuration value. Nothing
// after Load reaches back into viper; every component reads from a
// Snapshot passed down explicitly.
type Snapshot struct {
	AI       AI       `mapstructure:"ai"`
	Sync     Sync     `mapstructure:"sync"`
	General  General  `mapstructure:"general"`
	Parallel Parallel `mapstructure:"parallel"`
	Formats  Formats  `mapstructure:"formats"`

	// ConfigFilePath records where the TOML file was (or would be) read
	// from, for the `config path`/`config set` subcommands.
	ConfigFilePath string
}

const envPrefix = "SUBX"

// ConfigDir resolves the platform configuration directory via xdg. It
// does not consult SUBX_CONFIG_PATH; Load applies that override.
func ConfigDir() (string, error) {
	return xdg.ConfigFile("subx")
}

func defaultConfigFilePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ai.provider", "custom")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.base_url", "https://api.openai.com/v1")
	v.SetDefault("ai.temperature", 0.2)
	v.SetDefault("ai.max_sample_length", 2000)
	v.SetDefault("ai.retry_attempts", 3)
	v.SetDefault("ai.retry_delay_ms", 500)

	v.SetDefault("sync.default_method", "auto")
	v.SetDefault("sync.max_offset_seconds", 30.0)
	v.SetDefault("sync.vad.enabled", true)
	v.SetDefault("sync.vad.sensitivity", 0.5)
	v.SetDefault("sync.vad.chunk_size", 512)
	v.SetDefault("sync.vad.sample_rate", 16000)
	v.SetDefault("sync.vad.padding_chunks", 2)
	v.SetDefault("sync.vad.min_speech_duration_ms", 250)
	v.SetDefault("sync.vad.speech_merge_gap_ms", 200)

	v.SetDefault("general.backup_enabled", true)
	v.SetDefault("general.max_concurrent_jobs", 4)
	v.SetDefault("general.task_timeout_seconds", 120)
	v.SetDefault("general.enable_progress_bar", true)
	v.SetDefault("general.worker_idle_timeout_seconds", 30)

	v.SetDefault("parallel.max_workers", 4)
	v.SetDefault("parallel.task_queue_size", 64)
	v.SetDefault("parallel.enable_task_priorities", false)
	v.SetDefault("parallel.auto_balance_workers", false)
	v.SetDefault("parallel.overflow_strategy", "Block")

	v.SetDefault("formats.default_output", "srt")
	v.SetDefault("formats.preserve_styling", true)
	v.SetDefault("formats.default_encoding", "utf-8")
	v.SetDefault("formats.encoding_detection_confidence", 0.5)
}

// Load merges file < env < CLI flags into one Snapshot. flags may be nil
// when no CLI flag overrides are being bound (e.g. `config` subcommands).
func Load(flags *viper.Viper) (*Snapshot, error) {
	v := viper.New()
	setDefaults(v)

	path := os.Getenv("SUBX_CONFIG_PATH")
	if path == "" {
		p, err := defaultConfigFilePath()
		if err != nil {
			return nil, core.NewConfigError("config_path", err)
		}
		path = p
	}

	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return nil, core.NewConfigError(path, fmt.Errorf("reading config file: %w", err))
			}
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	if v.GetString("ai.api_key") == "" {
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			v.Set("ai.api_key", key)
		}
	}

	if flags != nil {
		for _, key := range flags.AllKeys() {
			v.Set(key, flags.Get(key))
		}
	}

	var snap Snapshot
	if err := v.Unmarshal(&snap); err != nil {
		return nil, core.NewConfigError("", fmt.Errorf("unmarshalling configuration: %w", err))
	}
	snap.ConfigFilePath = path

	if err := Validate(&snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Validate enforces the range constraints of spec.md §3, attaching the
// offending key to every violation per the error-handling design (§7.2).
func Validate(s *Snapshot) error {
	checks := []struct {
		key string
		ok  bool
	}{
		{"ai.temperature", s.AI.Temperature >= 0.0 && s.AI.Temperature <= 2.0},
		{"sync.max_offset_seconds", s.Sync.MaxOffsetSeconds > 0},
		{"sync.default_method", s.Sync.DefaultMethod == "auto" || s.Sync.DefaultMethod == "vad"},
		{"sync.vad.sensitivity", s.Sync.VAD.Sensitivity >= 0 && s.Sync.VAD.Sensitivity <= 1},
		{"sync.vad.sample_rate", isValidSampleRate(s.Sync.VAD.SampleRate)},
		{"sync.vad.chunk_size", isPowerOfTwo(s.Sync.VAD.ChunkSize)},
		{"general.max_concurrent_jobs", s.General.MaxConcurrentJobs >= 1 && s.General.MaxConcurrentJobs <= 64},
		{"parallel.max_workers", s.Parallel.MaxWorkers >= 1 && s.Parallel.MaxWorkers <= 64},
		{"parallel.overflow_strategy", isValidOverflow(s.Parallel.OverflowStrategy)},
		{"formats.encoding_detection_confidence", s.Formats.EncodingDetectionConfidence >= 0 && s.Formats.EncodingDetectionConfidence <= 1},
	}
	for _, c := range checks {
		if !c.ok {
			return core.NewConfigError(c.key, fmt.Errorf("value out of allowed range for %s", c.key))
		}
	}
	return nil
}

func isValidSampleRate(r int) bool {
	switch r {
	case 8000, 16000, 22050, 32000, 44100, 48000:
		return true
	default:
		return false
	}
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

func isValidOverflow(s string) bool {
	switch s {
	case "Block", "Drop", "Expand":
		return true
	default:
		return false
	}
}
