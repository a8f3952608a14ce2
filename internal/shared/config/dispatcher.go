package config

import (
	"time"

	"github.com/spf13/viper"
)

// DispatcherConfig contains all configuration for the dispatcher command.
type DispatcherConfig struct {
	Host    HostConnConfig `mapstructure:"host" yaml:"host"`
	Encoder EncoderConfig  `mapstructure:"encoder" yaml:"encoder"`
	Prompt  PromptConfig   `mapstructure:"prompt" yaml:"prompt"`
	Output  OutputConfig   `mapstructure:"output" yaml:"output"`
	Poll    PollConfig     `mapstructure:"poll" yaml:"poll"`
	Logging LoggingConfig  `mapstructure:"logging" yaml:"logging"`
}

// HostConnConfig describes how to reach the execution host.
type HostConnConfig struct {
	Addr           string        `mapstructure:"addr" yaml:"addr"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// EncoderConfig selects the text encoder loaded on the host.
type EncoderConfig struct {
	Name string `mapstructure:"name" yaml:"name"`
	Type string `mapstructure:"type" yaml:"type"`
}

type PromptConfig struct {
	Positive string `mapstructure:"positive" yaml:"positive"`
	Negative string `mapstructure:"negative" yaml:"negative"`
}

// OutputConfig controls artifact naming and the optional local copy.
type OutputConfig struct {
	Prefix string `mapstructure:"prefix" yaml:"prefix"`
	Path   string `mapstructure:"path" yaml:"path"`
}

// PollConfig controls history polling. MaxConsecutiveFailures of 0 tolerates
// any number of failed polls until Timeout.
type PollConfig struct {
	Interval               time.Duration `mapstructure:"interval" yaml:"interval"`
	Timeout                time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxConsecutiveFailures int           `mapstructure:"max_consecutive_failures" yaml:"max_consecutive_failures"`
}

// LoadDispatcher loads the dispatcher configuration from the given path.
// If configPath is empty, it looks for dispatcher.yaml in the config/ directory.
// Environment variables with WANREMOTE_DISPATCHER_ prefix override config file values.
func LoadDispatcher(configPath string) (*DispatcherConfig, error) {
	v := viper.New()

	v.SetDefault("host.addr", "http://127.0.0.1:8188")
	v.SetDefault("host.request_timeout", 60*time.Second)
	v.SetDefault("encoder.name", "umt5_xxl_fp8_e4m3fn_scaled.safetensors")
	v.SetDefault("encoder.type", "wan")
	v.SetDefault("prompt.positive", "")
	v.SetDefault("prompt.negative", "")
	v.SetDefault("output.prefix", "wan_remote")
	v.SetDefault("output.path", "")
	v.SetDefault("poll.interval", 1*time.Second)
	v.SetDefault("poll.timeout", 300*time.Second)
	v.SetDefault("poll.max_consecutive_failures", 0)

	var cfg DispatcherConfig
	if err := load(v, configPath, "dispatcher", "DISPATCHER", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
