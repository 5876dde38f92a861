package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the parley configuration file
// (~/.config/parley/config.yaml). Sampling fields are pointers so we
// can distinguish "not set" from zero values.
type Config struct {
	// Sampling defaults
	Temperature   *float64 `yaml:"temp"`
	TopK          *int64   `yaml:"top_k"`
	TopP          *float64 `yaml:"top_p"`
	RepeatLastN   *int64   `yaml:"repeat_last_n"`
	RepeatPenalty *float64 `yaml:"repeat_penalty"`
	NPredict      *int64   `yaml:"n_predict"`
	CtxSize       *int64   `yaml:"ctx_size"`
	BatchSize     *int64   `yaml:"batch_size"`
	Threads       *int64   `yaml:"threads"`
	Seed          *int64   `yaml:"seed"`

	// Interaction
	ReversePrompt string `yaml:"reverse_prompt"`

	// Output
	StreamMode string `yaml:"stream_mode"`
	LogLevel   string `yaml:"log_level"`
	LogFormat  string `yaml:"log_format"`

	// Server
	ServerAddress string `yaml:"server_address"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "parley", "config.yaml")
}

// applyRunConfig applies config file defaults to run command variables
// when the corresponding CLI flag was not explicitly set.
func applyRunConfig(c *cli.Command, cfg Config,
	temp *float64, topK *int64, topP *float64, repeatLastN *int64,
	repeatPenalty *float64, nPredict *int64, ctxSize *int64,
	batchSize *int64, threads *int64, seed *int64,
	reversePrompt *string, streamMode *string,
) {
	if cfg.Temperature != nil && !c.IsSet("temp") {
		*temp = *cfg.Temperature
	}
	if cfg.TopK != nil && !c.IsSet("top_k") {
		*topK = *cfg.TopK
	}
	if cfg.TopP != nil && !c.IsSet("top_p") {
		*topP = *cfg.TopP
	}
	if cfg.RepeatLastN != nil && !c.IsSet("repeat_last_n") {
		*repeatLastN = *cfg.RepeatLastN
	}
	if cfg.RepeatPenalty != nil && !c.IsSet("repeat_penalty") {
		*repeatPenalty = *cfg.RepeatPenalty
	}
	if cfg.NPredict != nil && !c.IsSet("n_predict") {
		*nPredict = *cfg.NPredict
	}
	if cfg.CtxSize != nil && !c.IsSet("ctx_size") {
		*ctxSize = *cfg.CtxSize
	}
	if cfg.BatchSize != nil && !c.IsSet("batch_size") {
		*batchSize = *cfg.BatchSize
	}
	if cfg.Threads != nil && !c.IsSet("threads") {
		*threads = *cfg.Threads
	}
	if cfg.Seed != nil && !c.IsSet("seed") {
		*seed = *cfg.Seed
	}
	if cfg.ReversePrompt != "" && !c.IsSet("reverse-prompt") {
		*reversePrompt = cfg.ReversePrompt
	}
	if cfg.StreamMode != "" && !c.IsSet("stream-mode") {
		*streamMode = cfg.StreamMode
	}
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applyServeConfig applies config file defaults to serve command variables.
func applyServeConfig(c *cli.Command, cfg Config, addr *string) {
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// LoadConfig reads the config file. Returns a zero Config if the file doesn't exist.
func LoadConfig() Config {
	path := configPath()
	if path == "" {
		return Config{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}
	return cfg
}
