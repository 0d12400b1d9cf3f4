package main

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/damianoneill/ncclient/netconf/client"
)

// fileConfig is the content of an ncrpc configuration file, in YAML or TOML.
type fileConfig struct {
	Target  client.Target `yaml:"target" toml:"target"`
	Session sessionConfig `yaml:"session" toml:"session"`
	Log     logConfig     `yaml:"log" toml:"log"`
}

type sessionConfig struct {
	SetupTimeout        time.Duration `yaml:"setup-timeout" toml:"setup-timeout"`
	ReplyTimeout        time.Duration `yaml:"reply-timeout" toml:"reply-timeout"`
	CloseTimeout        time.Duration `yaml:"close-timeout" toml:"close-timeout"`
	DisableChunkedCodec bool          `yaml:"disable-chunked-codec" toml:"disable-chunked-codec"`
	Capabilities        []string      `yaml:"capabilities" toml:"capabilities"`
	LenientLocks        bool          `yaml:"lenient-locks" toml:"lenient-locks"`
	ErrOnWarning        bool          `yaml:"error-on-warning" toml:"error-on-warning"`
	MaxChunkSize        uint32        `yaml:"max-chunk-size" toml:"max-chunk-size"`
}

type logConfig struct {
	Level string `yaml:"level" toml:"level"`
	JSON  bool   `yaml:"json" toml:"json"`
}

// loadConfig reads the configuration file at path, decoding TOML for a .toml
// extension and YAML otherwise. An empty path delivers an empty configuration.
func loadConfig(path string) (*fileConfig, error) {
	c := &fileConfig{}
	if path == "" {
		return c, nil
	}

	path, err := homedir.Expand(path)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid config path %s", path)
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.DecodeFile(path, c); err != nil {
			return nil, errors.Wrapf(err, "failed to load config %s", path)
		}
		return c, nil
	}

	b, err := os.ReadFile(path) //nolint: gosec
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load config %s", path)
	}
	if err := yaml.UnmarshalStrict(b, c); err != nil {
		return nil, errors.Wrapf(err, "failed to load config %s", path)
	}
	return c, nil
}

func (s *sessionConfig) clientConfig() *client.Config {
	return &client.Config{
		SetupTimeout:        s.SetupTimeout,
		ReplyTimeout:        s.ReplyTimeout,
		CloseTimeout:        s.CloseTimeout,
		DisableChunkedCodec: s.DisableChunkedCodec,
		Capabilities:        s.Capabilities,
		LenientLocks:        s.LenientLocks,
		ErrOnWarning:        s.ErrOnWarning,
		MaxChunkSize:        s.MaxChunkSize,
	}
}
