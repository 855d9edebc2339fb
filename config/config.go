// Package config loads the gateway's optional TOML config file. Command
// line flags take precedence over file values.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration that unmarshals from TOML strings like "45s".
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Webhook is a callback registered at startup, before the first event.
type Webhook struct {
	URL    string   `toml:"url"`
	Events []string `toml:"events"`
}

type Config struct {
	Listen     string   `toml:"listen"`
	SignalCLI  string   `toml:"signal_cli"`
	RPCTimeout Duration `toml:"rpc_timeout"`
	TLSCert    string   `toml:"tls_cert"`
	TLSKey     string   `toml:"tls_key"`
	LogLevel   string   `toml:"log_level"`

	Webhooks []Webhook `toml:"webhook"`
}

func Default() Config {
	return Config{
		Listen:     "127.0.0.1:8080",
		RPCTimeout: Duration(30 * time.Second),
		LogLevel:   "info",
	}
}

// Load reads the file at path on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}
