// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-manta.
//
// go-manta is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package config loads client settings from defaults, a config file, the
// environment and command line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jeremyhahn/go-manta/pkg/adapters"
	"github.com/jeremyhahn/go-manta/pkg/httpexec"
	"github.com/jeremyhahn/go-manta/pkg/manta"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. MANTA_KEY_ID.
const EnvPrefix = "MANTA"

// Setting keys. Environment variables use the upper-cased key with dashes
// replaced by underscores.
const (
	KeyURL                = "url"
	KeyUser               = "user"
	KeySubuser            = "subuser"
	KeyKeyID              = "key-id"
	KeyKeyPath            = "key-path"
	KeyKeyContent         = "key-content"
	KeyPassword           = "password"
	KeyTimeout            = "timeout"
	KeyProtocol           = "protocol"
	KeyCAFile             = "ca-file"
	KeyInsecureSkipVerify = "insecure-skip-verify"
	KeyRequestsPerSecond  = "requests-per-second"
	KeyBurst              = "burst"
	KeyLogLevel           = "log-level"
	KeyLogFormat          = "log-format"
	KeyOutputFormat       = "output-format"
)

// Config holds the resolved settings.
type Config struct {
	URL        string
	User       string
	Subuser    string
	KeyID      string
	KeyPath    string
	KeyContent string
	Password   string

	Timeout            time.Duration
	Protocol           string
	CAFile             string
	InsecureSkipVerify bool

	RequestsPerSecond float64
	Burst             int

	LogLevel     string
	LogFormat    string
	OutputFormat string
}

// Load builds a viper instance. cfgFile, when set, is the only file read;
// otherwise ".manta.yaml" is searched in the home and working directories.
// A missing config file is not an error.
func Load(cfgFile string) (*viper.Viper, error) {
	v := viper.New()

	v.SetDefault(KeyURL, "https://us-east.manta.joyent.com")
	v.SetDefault(KeyTimeout, 20*time.Second)
	v.SetDefault(KeyProtocol, string(httpexec.ProtocolHTTP))
	v.SetDefault(KeyLogLevel, "warn")
	v.SetDefault(KeyLogFormat, string(adapters.FormatText))
	v.SetDefault(KeyOutputFormat, "text")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigName(".manta")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}
	return v, nil
}

// FromViper extracts the settings from v.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		URL:                v.GetString(KeyURL),
		User:               v.GetString(KeyUser),
		Subuser:            v.GetString(KeySubuser),
		KeyID:              v.GetString(KeyKeyID),
		KeyPath:            v.GetString(KeyKeyPath),
		KeyContent:         v.GetString(KeyKeyContent),
		Password:           v.GetString(KeyPassword),
		Timeout:            v.GetDuration(KeyTimeout),
		Protocol:           v.GetString(KeyProtocol),
		CAFile:             v.GetString(KeyCAFile),
		InsecureSkipVerify: v.GetBool(KeyInsecureSkipVerify),
		RequestsPerSecond:  v.GetFloat64(KeyRequestsPerSecond),
		Burst:              v.GetInt(KeyBurst),
		LogLevel:           v.GetString(KeyLogLevel),
		LogFormat:          v.GetString(KeyLogFormat),
		OutputFormat:       v.GetString(KeyOutputFormat),
	}
}

// Validate checks that the settings can build a client.
func (c *Config) Validate() error {
	if c.URL == "" {
		return ErrURLRequired
	}
	if c.User == "" {
		return ErrUserRequired
	}
	if c.KeyPath == "" && c.KeyContent == "" {
		return ErrKeyRequired
	}
	switch httpexec.Protocol(c.Protocol) {
	case httpexec.ProtocolHTTP, httpexec.ProtocolHTTP3:
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedProtocol, c.Protocol)
	}
	if _, err := adapters.ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	switch adapters.LogFormat(c.LogFormat) {
	case adapters.FormatJSON, adapters.FormatText:
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedLogFormat, c.LogFormat)
	}
	switch c.OutputFormat {
	case "text", "json", "table":
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedOutputFormat, c.OutputFormat)
	}
	return nil
}

// Logger builds the logger described by the settings, writing to w.
func (c *Config) Logger(w io.Writer) (adapters.Logger, error) {
	level, err := adapters.ParseLogLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	return adapters.NewLogger(w, level, adapters.LogFormat(c.LogFormat)), nil
}

// TransportConfig returns the connection settings.
func (c *Config) TransportConfig() httpexec.TransportConfig {
	tc := httpexec.DefaultTransportConfig()
	tc.Protocol = httpexec.Protocol(c.Protocol)
	if c.Timeout > 0 {
		tc.ConnectTimeout = c.Timeout
	}
	if c.CAFile != "" || c.InsecureSkipVerify {
		tc.TLS = adapters.NewTLSConfig().
			WithCAFile(c.CAFile).
			WithInsecureSkipVerify(c.InsecureSkipVerify)
	}
	return tc
}

// ClientConfig converts the settings into a manta.Config.
func (c *Config) ClientConfig(logger adapters.Logger) manta.Config {
	return manta.Config{
		URL:               c.URL,
		Account:           c.User,
		Subuser:           c.Subuser,
		KeyID:             c.KeyID,
		KeyPath:           c.KeyPath,
		KeyContent:        c.KeyContent,
		Passphrase:        c.Password,
		Transport:         c.TransportConfig(),
		RequestsPerSecond: c.RequestsPerSecond,
		Burst:             c.Burst,
		Logger:            logger,
	}
}

// Watch calls fn with the reloaded settings each time the config file
// changes. It is meant for long running embedders; the watcher runs until
// the process exits.
func Watch(v *viper.Viper, fn func(*Config, fsnotify.Event)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		fn(FromViper(v), e)
	})
	v.WatchConfig()
}
