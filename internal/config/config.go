// Package config loads gosheets settings from defaults, an optional YAML
// config file, GOSHEETS_* environment variables and runtime overrides, in
// increasing order of precedence.
package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/schema"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	schemasassets "github.com/3leaps/gosheets/internal/assets/schemas"
)

// AppName names the binary, the config directory and the env prefix.
const AppName = "gosheets"

// EnvPrefix is prepended to every environment variable.
const EnvPrefix = "GOSHEETS"

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the complete application configuration.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Batch   BatchConfig   `mapstructure:"batch"`
	DBM     DBMConfig     `mapstructure:"dbm"`
	Server  ServerConfig  `mapstructure:"server"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// BatchConfig configures the AWS Batch job source.
type BatchConfig struct {
	Region      string  `mapstructure:"region"`
	Profile     string  `mapstructure:"profile"`
	Endpoint    string  `mapstructure:"endpoint"`
	Concurrency int     `mapstructure:"concurrency"`
	RateLimit   float64 `mapstructure:"rate_limit"`
	PageSize    int     `mapstructure:"page_size"`
}

// DBMConfig configures the key-value source.
type DBMConfig struct {
	Encoding string `mapstructure:"encoding"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// DBMRoot confines key-value sources served over HTTP. Empty allows
	// any path the process can read.
	DBMRoot string `mapstructure:"dbm_root"`
}

// EnvSpec maps a short environment variable onto a config path. Every key
// is also reachable as GOSHEETS_<SECTION>_<KEY>.
type EnvSpec struct {
	Name string
	Path string
}

var (
	configMu  sync.RWMutex
	appConfig *Config
)

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")

	v.SetDefault("batch.region", "")
	v.SetDefault("batch.profile", "")
	v.SetDefault("batch.endpoint", "")
	v.SetDefault("batch.concurrency", 8)
	v.SetDefault("batch.rate_limit", 0.0)
	v.SetDefault("batch.page_size", 100)

	v.SetDefault("dbm.encoding", "utf-8")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.dbm_root", "")
}

// Load builds the configuration from defaults, the user config file (if
// one exists), the environment and overrides.
func Load(ctx context.Context, overrides ...map[string]any) (*Config, error) {
	return LoadFile(ctx, "", overrides...)
}

// LoadFile is Load with an explicit config file. An empty path falls back
// to the user config file; a named file that does not exist is an error.
func LoadFile(ctx context.Context, path string, overrides ...map[string]any) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := viper.New()
	SetDefaults(v)

	if path == "" {
		for _, candidate := range getUserConfigPaths() {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	if path != "" {
		if err := ValidateFile(path); err != nil {
			return nil, err
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, spec := range getEnvSpecs() {
		if err := v.BindEnv(spec.Path, spec.Name); err != nil {
			return nil, fmt.Errorf("bind %s: %w", spec.Name, err)
		}
	}

	for _, o := range overrides {
		for key, val := range flatten("", o) {
			v.Set(key, val)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configMu.Lock()
	appConfig = &cfg
	configMu.Unlock()

	return &cfg, nil
}

// GetConfig returns the most recently loaded configuration, or nil.
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// Validate checks value ranges that the decoder cannot express.
func (c *Config) Validate() error {
	var problems []string

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("logging.level %q must be one of debug, info, warn, error", c.Logging.Level))
	}
	if c.Batch.Concurrency < 1 {
		problems = append(problems, "batch.concurrency must be >= 1")
	}
	if c.Batch.RateLimit < 0 {
		problems = append(problems, "batch.rate_limit must be >= 0")
	}
	if c.Batch.PageSize < 1 || c.Batch.PageSize > 100 {
		problems = append(problems, "batch.page_size must be between 1 and 100")
	}
	if strings.TrimSpace(c.DBM.Encoding) == "" {
		problems = append(problems, "dbm.encoding must not be empty")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		problems = append(problems, "server.port must be between 0 and 65535")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// ValidateFile checks a YAML config file against the embedded schema.
func ValidateFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	if doc == nil {
		return nil
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}

	validator, err := schema.NewValidator(schemasassets.ConfigSchema)
	if err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	diags, err := validator.ValidateJSON(data)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	var problems []string
	for _, d := range diags {
		if d.Severity == schema.SeverityError {
			problems = append(problems, d.Pointer+": "+d.Message)
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s: %s", ErrInvalidConfig, path, strings.Join(problems, "; "))
	}
	return nil
}

func getEnvSpecs() []EnvSpec {
	return []EnvSpec{
		{Name: EnvPrefix + "_LOG_LEVEL", Path: "logging.level"},
		{Name: EnvPrefix + "_HOST", Path: "server.host"},
		{Name: EnvPrefix + "_PORT", Path: "server.port"},
		{Name: EnvPrefix + "_READ_TIMEOUT", Path: "server.read_timeout"},
		{Name: EnvPrefix + "_WRITE_TIMEOUT", Path: "server.write_timeout"},
		{Name: EnvPrefix + "_SHUTDOWN_TIMEOUT", Path: "server.shutdown_timeout"},
		{Name: EnvPrefix + "_DBM_ROOT", Path: "server.dbm_root"},
		{Name: EnvPrefix + "_REGION", Path: "batch.region"},
		{Name: EnvPrefix + "_PROFILE", Path: "batch.profile"},
		{Name: EnvPrefix + "_ENDPOINT", Path: "batch.endpoint"},
		{Name: EnvPrefix + "_CONCURRENCY", Path: "batch.concurrency"},
		{Name: EnvPrefix + "_ENCODING", Path: "dbm.encoding"},
	}
}

// getUserConfigPaths lists config files searched when none is named.
func getUserConfigPaths() []string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return nil
	}
	base := filepath.Join(dir, AppName)
	return []string{
		filepath.Join(base, "config.yaml"),
		filepath.Join(base, "config.yml"),
	}
}

// flatten turns nested override maps into dotted viper keys.
func flatten(prefix string, m map[string]any) map[string]any {
	out := make(map[string]any)
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		key := strings.ToLower(k)
		if prefix != "" {
			key = prefix + "." + key
		}
		if nested, ok := m[k].(map[string]any); ok {
			for nk, nv := range flatten(key, nested) {
				out[nk] = nv
			}
			continue
		}
		out[key] = m[k]
	}
	return out
}
