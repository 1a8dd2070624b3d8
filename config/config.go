// Package config loads the hub configuration: process settings from the
// environment and sensor platform entries from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the parsed configuration file.
type Config struct {
	Sensors []Entry `yaml:"sensor"`
}

// Entry is one platform block of the sensor list. Platform selects the setup
// function; the remaining keys are decoded by that platform.
type Entry struct {
	Platform string
	node     yaml.Node
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ErrMissingPlatform is returned for a sensor entry without a platform key.
var ErrMissingPlatform = errors.New("sensor entry has no platform")

func (e *Entry) UnmarshalYAML(value *yaml.Node) error {
	var head struct {
		Platform string `yaml:"platform"`
	}
	if err := value.Decode(&head); err != nil {
		return err
	}
	if head.Platform == "" {
		return fmt.Errorf("line %d: %w", value.Line, ErrMissingPlatform)
	}
	e.Platform = head.Platform
	e.node = *value
	return nil
}

// Decode decodes the entry into v and validates it against its validate tags.
func (e Entry) Decode(v interface{}) error {
	if err := e.node.Decode(v); err != nil {
		return fmt.Errorf("decode %s entry: %w", e.Platform, err)
	}
	return Validate(v)
}

// NewEntry builds an entry from a plain map, as if it had been read from the file.
func NewEntry(platform string, fields map[string]interface{}) (Entry, error) {
	all := map[string]interface{}{"platform": platform}
	for k, v := range fields {
		all[k] = v
	}
	var e Entry
	if err := e.node.Encode(all); err != nil {
		return Entry{}, err
	}
	e.Platform = platform
	return e, nil
}

// Validate checks v against its validate struct tags.
func Validate(v interface{}) error {
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			return fmt.Errorf("invalid config: %s failed on %q", f.Namespace(), f.Tag())
		}
		return err
	}
	return nil
}

// Load reads and parses the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses configuration file contents.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return &cfg, nil
}
