package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/displacement.report/internal/estimator"
	"github.com/banshee-data/displacement.report/internal/units"
)

// DefaultConfigPath is the path to the canonical estimator defaults file.
const DefaultConfigPath = "config/estimator.defaults.json"

// DefaultProfilePattern matches the raw compression profiles produced by the
// bench rig, e.g. cpr_profile_12cmps2.csv.
const DefaultProfilePattern = "cpr_profile_*cmps2.csv"

// EstimatorConfig represents the tuning parameters for a displacement run.
// Every field is optional; the Get* methods supply defaults for unset fields
// so partial JSON or YAML documents are safe.
type EstimatorConfig struct {
	// Method is one of "integrate", "highpass", "kalman".
	Method *string `json:"method,omitempty" yaml:"method,omitempty"`

	// High-pass params
	Alpha *float64 `json:"alpha,omitempty" yaml:"alpha,omitempty"`

	// ZUPT Kalman params
	CorrectEvery *int     `json:"correct_every,omitempty" yaml:"correct_every,omitempty"`
	P11          *float64 `json:"p11,omitempty" yaml:"p11,omitempty"`
	P22          *float64 `json:"p22,omitempty" yaml:"p22,omitempty"`
	Q11          *float64 `json:"q11,omitempty" yaml:"q11,omitempty"`
	Q22          *float64 `json:"q22,omitempty" yaml:"q22,omitempty"`
	R            *float64 `json:"r,omitempty" yaml:"r,omitempty"`

	// Input params
	FallbackDT     *float64 `json:"fallback_dt,omitempty" yaml:"fallback_dt,omitempty"` // seconds, used for single-row profiles
	InputUnit      *string  `json:"input_unit,omitempty" yaml:"input_unit,omitempty"`   // overrides the unit implied by the column name
	ProfilePattern *string  `json:"profile_pattern,omitempty" yaml:"profile_pattern,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyEstimatorConfig returns an EstimatorConfig with all fields set to nil.
func EmptyEstimatorConfig() *EstimatorConfig {
	return &EstimatorConfig{}
}

// DefaultEstimatorConfig returns a config with every field populated.
func DefaultEstimatorConfig() *EstimatorConfig {
	return &EstimatorConfig{
		Method:         ptrString(estimator.MethodIntegrate.String()),
		Alpha:          ptrFloat64(estimator.DefaultAlpha),
		CorrectEvery:   ptrInt(estimator.DefaultCorrectEvery),
		P11:            ptrFloat64(estimator.DefaultP11),
		P22:            ptrFloat64(estimator.DefaultP22),
		Q11:            ptrFloat64(estimator.DefaultQ11),
		Q22:            ptrFloat64(estimator.DefaultQ22),
		R:              ptrFloat64(estimator.DefaultR),
		FallbackDT:     ptrFloat64(0.01),
		ProfilePattern: ptrString(DefaultProfilePattern),
	}
}

// LoadEstimatorConfig loads an EstimatorConfig from a JSON or YAML file.
// The file is validated to ensure it has a known extension and is under the max file size.
func LoadEstimatorConfig(path string) (*EstimatorConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyEstimatorConfig()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadDefaultConfig loads the canonical defaults from DefaultConfigPath.
// It searches the current directory and common parent directories and
// returns the error for the last candidate when none can be loaded.
func LoadDefaultConfig() (*EstimatorConfig, error) {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/ or cmd/cprdisp/
		"../../../" + DefaultConfigPath,
	}
	var err error
	for _, path := range candidates {
		var cfg *EstimatorConfig
		if cfg, err = LoadEstimatorConfig(path); err == nil {
			return cfg, nil
		}
	}
	return nil, fmt.Errorf("cannot load %s: %w", DefaultConfigPath, err)
}

// Validate checks that the configuration values are valid.
func (c *EstimatorConfig) Validate() error {
	if c.Method != nil {
		if _, err := estimator.ParseMethod(*c.Method); err != nil {
			return err
		}
	}
	if c.InputUnit != nil && *c.InputUnit != "" && !units.IsValid(*c.InputUnit) {
		return fmt.Errorf("input_unit must be one of %s, got %q", units.GetValidUnitsString(), *c.InputUnit)
	}
	if c.FallbackDT != nil && !(*c.FallbackDT > 0) {
		return fmt.Errorf("fallback_dt must be positive, got %f", *c.FallbackDT)
	}
	if c.ProfilePattern != nil {
		if _, err := filepath.Match(*c.ProfilePattern, ""); err != nil {
			return fmt.Errorf("invalid profile_pattern %q: %w", *c.ProfilePattern, err)
		}
	}

	// Parameter ranges are checked for every method, not just the selected
	// one, so a config file stays valid when the method is switched on the
	// command line.
	if c.Alpha != nil {
		hp := c.ToEstimator(estimator.MethodHighPass)
		if err := hp.Validate(); err != nil {
			return err
		}
	}
	if c.CorrectEvery != nil || c.P11 != nil || c.P22 != nil || c.Q11 != nil || c.Q22 != nil || c.R != nil {
		k := c.ToEstimator(estimator.MethodKalman)
		if err := k.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// GetMethod returns the configured method or MethodIntegrate.
func (c *EstimatorConfig) GetMethod() estimator.Method {
	if c.Method == nil {
		return estimator.MethodIntegrate
	}
	m, err := estimator.ParseMethod(*c.Method)
	if err != nil {
		return estimator.MethodIntegrate // default on parse error
	}
	return m
}

// GetAlpha returns the alpha value or the default.
func (c *EstimatorConfig) GetAlpha() float64 {
	if c.Alpha == nil {
		return estimator.DefaultAlpha
	}
	return *c.Alpha
}

// GetCorrectEvery returns the correct_every value or the default.
func (c *EstimatorConfig) GetCorrectEvery() int {
	if c.CorrectEvery == nil {
		return estimator.DefaultCorrectEvery
	}
	return *c.CorrectEvery
}

// GetKalmanParams returns the ZUPT noise model, filling unset terms with defaults.
func (c *EstimatorConfig) GetKalmanParams() estimator.KalmanParams {
	p := estimator.DefaultKalmanParams()
	if c.P11 != nil {
		p.P11 = *c.P11
	}
	if c.P22 != nil {
		p.P22 = *c.P22
	}
	if c.Q11 != nil {
		p.Q11 = *c.Q11
	}
	if c.Q22 != nil {
		p.Q22 = *c.Q22
	}
	if c.R != nil {
		p.R = *c.R
	}
	return p
}

// GetFallbackDT returns the fallback_dt value or the default.
func (c *EstimatorConfig) GetFallbackDT() float64 {
	if c.FallbackDT == nil {
		return 0.01 // default
	}
	return *c.FallbackDT
}

// GetInputUnit returns the input_unit override, or "" when the unit should be
// taken from the column name.
func (c *EstimatorConfig) GetInputUnit() string {
	if c.InputUnit == nil {
		return ""
	}
	return units.Normalize(*c.InputUnit)
}

// GetProfilePattern returns the profile_pattern value or the default.
func (c *EstimatorConfig) GetProfilePattern() string {
	if c.ProfilePattern == nil || *c.ProfilePattern == "" {
		return DefaultProfilePattern
	}
	return *c.ProfilePattern
}

// ToEstimator builds the estimator configuration for method m.
func (c *EstimatorConfig) ToEstimator(m estimator.Method) estimator.Config {
	return estimator.Config{
		Method:       m,
		Alpha:        c.GetAlpha(),
		CorrectEvery: c.GetCorrectEvery(),
		Kalman:       c.GetKalmanParams(),
	}
}
