// Package config loads the dispatcher configuration.
//
// Configuration is a YAML document. Unknown keys are rejected, missing keys
// keep their defaults, and the merged result is validated against the
// embedded CUE schema (schema.cue) before it is returned.
package config

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// Defaults.
const (
	DefaultChannel   = "FunctionModels"
	DefaultMaxCount  = 4096
	DefaultCharWidth = 4
	DefaultPolicy    = "handle-all"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "console"
)

// Config is the full configuration.
type Config struct {
	// Enabled is the initial state of the dispatch gate.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Channel is the engine channel commands are sent on.
	Channel string `yaml:"channel" json:"channel"`

	// MaxCount is the oversized-count threshold of the bounded models.
	MaxCount uint64 `yaml:"max_count" json:"max_count"`

	// CharWidth is sizeof(wchar_t) in the guest.
	CharWidth int `yaml:"char_width" json:"char_width"`

	// DisabledRoutines always go straight to the real routine.
	DisabledRoutines []string `yaml:"disabled_routines" json:"disabled_routines"`

	Engine EngineConfig `yaml:"engine" json:"engine"`
	Log    LogConfig    `yaml:"log" json:"log"`
	Store  StoreConfig  `yaml:"store" json:"store"`
}

// EngineConfig configures the in-process engine.
type EngineConfig struct {
	// Policy is handle-all, defer-all or defer-ops.
	Policy string `yaml:"policy" json:"policy"`

	// DeferOps lists the command ops deferred under defer-ops.
	DeferOps []string `yaml:"defer_ops" json:"defer_ops"`
}

// LogConfig configures the host-side logger.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// StoreConfig configures the dispatch trace database. An empty path
// disables recording.
type StoreConfig struct {
	Path string `yaml:"path" json:"path"`
}

// ConfigError is a configuration problem at a field path.
type ConfigError struct {
	Path    string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return "config: " + e.Message
	}
	return fmt.Sprintf("config: %s: %s", e.Path, e.Message)
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Enabled:          true,
		Channel:          DefaultChannel,
		MaxCount:         DefaultMaxCount,
		CharWidth:        DefaultCharWidth,
		DisabledRoutines: []string{},
		Engine:           EngineConfig{Policy: DefaultPolicy, DeferOps: []string{}},
		Log:              LogConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
	}
}

// Load reads and validates the file at path. An empty path yields the
// defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes data over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, &ConfigError{Message: err.Error()}
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// normalize fills what an explicit empty YAML value cleared.
func (c *Config) normalize() {
	if c.DisabledRoutines == nil {
		c.DisabledRoutines = []string{}
	}
	if c.Engine.DeferOps == nil {
		c.Engine.DeferOps = []string{}
	}
	if c.Engine.Policy == "" {
		c.Engine.Policy = DefaultPolicy
	}
}

// Validate checks c against the schema. The error joins one *ConfigError
// per violation.
func (c Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("config: compiling schema: %w", err)
	}

	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(ctx.Encode(c))
	err := v.Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}

	var errs []error
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		errs = append(errs, &ConfigError{
			Path:    fieldPath(e.Path()),
			Message: fmt.Sprintf(format, args...),
		})
	}
	return errors.Join(errs...)
}

// fieldPath drops the definition name from a CUE path.
func fieldPath(p []string) string {
	if len(p) > 0 && strings.HasPrefix(p[0], "#") {
		p = p[1:]
	}
	return strings.Join(p, ".")
}

// Hash identifies a configuration in recorded sessions.
func (c Config) Hash() string {
	raw, _ := json.Marshal(c)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:8])
}
