package eval

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config enumerates every setting of a comparison run.
type Config struct {
	ExpectedPath       string             `yaml:"expected" validate:"required"`
	ActualPath         string             `yaml:"actual" validate:"required"`
	TestLabel          string             `yaml:"testLabel"`
	OutputFolder       string             `yaml:"outputFolder"` // Empty disables artifact output
	BaselinePath       string             `yaml:"baseline"`
	BuildID            string             `yaml:"buildId"` // Run identifier; generated when empty
	Tolerance          float64            `yaml:"tolerance" validate:"gte=0,lte=1"`
	ToleranceOverrides map[string]float64 `yaml:"toleranceOverrides" validate:"omitempty,dive,gte=0,lte=1"`
	Strict             bool               `yaml:"strict"`
	UnitTest           bool               `yaml:"unitTest"`
	Concurrency        int                `yaml:"concurrency" validate:"gte=0"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		OutputFolder: ".",
		Tolerance:    0.05,
		Strict:       false,
		Concurrency:  runtime.NumCPU(),
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the whole configuration, input paths included.
func (c Config) Validate() error {
	return wrapValidation(validate.Struct(c))
}

// validateSettings checks everything except the input paths, for runs whose
// utterances are already in memory.
func (c Config) validateSettings() error {
	return wrapValidation(validate.StructExcept(c, "ExpectedPath", "ActualPath"))
}

func wrapValidation(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return configErrorf(err, "invalid %s (%s)", fe.Field(), fe.Tag())
	}
	return configErrorf(err, "invalid configuration")
}

// LoadConfig reads a YAML (or JSON) configuration file on top of
// DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, configErrorf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, configErrorf(err, "parse config %s", path)
	}
	return cfg, nil
}

func (c Config) String() string {
	return fmt.Sprintf("expected=%s actual=%s label=%q tolerance=%.2f strict=%t unitTest=%t",
		c.ExpectedPath, c.ActualPath, c.TestLabel, c.Tolerance, c.Strict, c.UnitTest)
}
