package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Transcribe  TranscribeConfig  `yaml:"transcribe"`
	Process     ProcessConfig     `yaml:"process"`
	Retry       RetryConfig       `yaml:"retry"`
	Cache       CacheConfig       `yaml:"cache"`
	Paths       PathsConfig       `yaml:"paths"`
	Logging     LoggingConfig     `yaml:"logging"`
	Performance PerformanceConfig `yaml:"performance"`
}

// TranscribeConfig tunes the audio path of the pipeline.
type TranscribeConfig struct {
	APIBaseURL string `yaml:"api_base_url"`
	Model      string `yaml:"model"`
	// MaxFileSizeMB is the provider's advertised per-call upload limit.
	MaxFileSizeMB int `yaml:"max_file_size_mb"`
	// MaxUploadMB is the absolute hard limit; larger inputs are
	// rejected before any remote call.
	MaxUploadMB int `yaml:"max_upload_mb"`
	// ChunkDurationSeconds is the target duration of one audio segment.
	ChunkDurationSeconds int `yaml:"chunk_duration_seconds"`
	// BytesPerSecond converts byte size to an estimated duration when
	// the media collaborator cannot supply one. Default assumes 16 kHz
	// mono PCM16.
	BytesPerSecond    int `yaml:"bytes_per_second"`
	APITimeoutSeconds int `yaml:"api_timeout_seconds"`
}

// ProcessConfig tunes the AI text-processing path.
type ProcessConfig struct {
	APIBaseURL  string  `yaml:"api_base_url"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	// ChunkSizeChars is the target length of one text segment.
	ChunkSizeChars int `yaml:"chunk_size_chars"`
	// ChunkOverlapChars is shared between adjacent text segments so a
	// sentence cut at a boundary still has its context.
	ChunkOverlapChars int `yaml:"chunk_overlap_chars"`
	// MaxInputChars is the absolute hard limit; longer inputs are
	// rejected before any remote call.
	MaxInputChars     int `yaml:"max_input_chars"`
	APITimeoutSeconds int `yaml:"api_timeout_seconds"`
}

type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
	BaseDelayMS int `yaml:"base_delay_ms"`
}

func (r RetryConfig) BaseDelay() time.Duration {
	return time.Duration(r.BaseDelayMS) * time.Millisecond
}

type CacheConfig struct {
	// Disabled turns the cache into a no-op; the zero value keeps it on.
	Disabled bool   `yaml:"disabled"`
	Dir      string `yaml:"dir"`
	TTLHours int    `yaml:"ttl_hours"`
}

func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

type PathsConfig struct {
	// Inbox is watched for dropped media/text files; empty disables
	// the watcher.
	Inbox  string `yaml:"inbox"`
	Output string `yaml:"output"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type PerformanceConfig struct {
	MaxConcurrent int `yaml:"max_concurrent"`
}

// Load reads a YAML config file and applies defaults. A missing file
// is not an error: every tunable has a default.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fills defaults and rejects values the pipeline cannot run
// with.
func (c *Config) Validate() error {
	if c.Transcribe.APIBaseURL == "" {
		c.Transcribe.APIBaseURL = "https://api.siliconflow.cn/v1"
	}
	if c.Transcribe.Model == "" {
		c.Transcribe.Model = "FunAudioLLM/SenseVoiceSmall"
	}
	if c.Transcribe.MaxFileSizeMB == 0 {
		c.Transcribe.MaxFileSizeMB = 100
	}
	if c.Transcribe.MaxUploadMB == 0 {
		c.Transcribe.MaxUploadMB = 1024
	}
	if c.Transcribe.ChunkDurationSeconds == 0 {
		c.Transcribe.ChunkDurationSeconds = 60
	}
	if c.Transcribe.BytesPerSecond == 0 {
		c.Transcribe.BytesPerSecond = 32000
	}
	if c.Transcribe.APITimeoutSeconds == 0 {
		c.Transcribe.APITimeoutSeconds = 30
	}

	if c.Process.APIBaseURL == "" {
		c.Process.APIBaseURL = "https://api.deepseek.com/v1"
	}
	if c.Process.Model == "" {
		c.Process.Model = "deepseek-chat"
	}
	if c.Process.MaxTokens == 0 {
		c.Process.MaxTokens = 4000
	}
	if c.Process.Temperature == 0 {
		c.Process.Temperature = 0.7
	}
	if c.Process.ChunkSizeChars == 0 {
		c.Process.ChunkSizeChars = 2000
	}
	if c.Process.ChunkOverlapChars == 0 {
		c.Process.ChunkOverlapChars = 200
	}
	if c.Process.MaxInputChars == 0 {
		c.Process.MaxInputChars = 500000
	}
	if c.Process.APITimeoutSeconds == 0 {
		c.Process.APITimeoutSeconds = 60
	}

	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.BaseDelayMS == 0 {
		c.Retry.BaseDelayMS = 1000
	}

	if c.Cache.Dir == "" {
		c.Cache.Dir = "data/cache"
	}
	if c.Cache.TTLHours == 0 {
		c.Cache.TTLHours = 24
	}

	if c.Paths.Output == "" {
		c.Paths.Output = "data/output"
	}
	if c.Performance.MaxConcurrent == 0 {
		c.Performance.MaxConcurrent = 2
	}

	if c.Process.ChunkOverlapChars >= c.Process.ChunkSizeChars {
		return fmt.Errorf("process.chunk_overlap_chars (%d) must be smaller than process.chunk_size_chars (%d)",
			c.Process.ChunkOverlapChars, c.Process.ChunkSizeChars)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be >= 1")
	}
	return nil
}
