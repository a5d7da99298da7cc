package config

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/samber/oops"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"
)

const (
	DefaultLogFile     = "scanreport.log"
	DefaultOutputDir   = "."
	DefaultAPITokenEnv = "BLACKDUCK_API_TOKEN"
	DefaultTimeout     = 30 * time.Second
)

var ErrUnsupportedFormat = xerrors.New("unsupported config format")

type Config struct {
	LogFile      string    `yaml:"log_file" toml:"log_file"`
	Echo         bool      `yaml:"echo" toml:"echo"`
	OutputDir    string    `yaml:"output_dir" toml:"output_dir"`
	ArchivePath  string    `yaml:"archive_path" toml:"archive_path"`
	OverridesDir string    `yaml:"overrides_dir" toml:"overrides_dir"`
	BlackDuck    BlackDuck `yaml:"blackduck" toml:"blackduck"`
}

type BlackDuck struct {
	BaseURL            string   `yaml:"base_url" toml:"base_url"`
	APITokenEnv        string   `yaml:"api_token_env" toml:"api_token_env"`
	InsecureSkipVerify bool     `yaml:"insecure_skip_verify" toml:"insecure_skip_verify"`
	Timeout            Duration `yaml:"timeout" toml:"timeout"`
}

// APIToken reads the token from the configured environment variable.
func (b BlackDuck) APIToken() string {
	return os.Getenv(b.APITokenEnv)
}

// Duration decodes "30s"-style strings from both YAML and TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return xerrors.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

func Default() Config {
	return Config{
		LogFile:   DefaultLogFile,
		OutputDir: DefaultOutputDir,
		BlackDuck: BlackDuck{
			APITokenEnv: DefaultAPITokenEnv,
			Timeout:     Duration{DefaultTimeout},
		},
	}
}

// Load reads the config file at path, choosing the decoder by extension.
// Keys missing from the file keep their defaults. An empty path yields the
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	eb := oops.With("config_file", path)

	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, eb.Wrapf(err, "failed to read config file")
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err = yaml.UnmarshalStrict(b, &cfg); err != nil {
			return Config{}, eb.Wrapf(err, "failed to parse YAML config")
		}
	case ".toml":
		md, err := toml.Decode(string(b), &cfg)
		if err != nil {
			return Config{}, eb.Wrapf(err, "failed to parse TOML config")
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return Config{}, eb.With("key", undecoded[0].String()).Errorf("unknown config key")
		}
	default:
		return Config{}, xerrors.Errorf("%q: %w", ext, ErrUnsupportedFormat)
	}

	if err = cfg.Validate(); err != nil {
		return Config{}, eb.Wrapf(err, "invalid config")
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.OutputDir == "" {
		return xerrors.New("output_dir must not be empty")
	}
	if c.BlackDuck.Timeout.Duration < 0 {
		return xerrors.New("blackduck.timeout must not be negative")
	}
	if c.BlackDuck.BaseURL != "" {
		u, err := url.Parse(c.BlackDuck.BaseURL)
		if err != nil {
			return xerrors.Errorf("blackduck.base_url: %w", err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return xerrors.Errorf("blackduck.base_url %q must be an http(s) URL", c.BlackDuck.BaseURL)
		}
	}
	return nil
}
