package kin_arm

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"gopkg.in/yaml.v3"
)

// JointConfig describes one servo. Angles are in degrees.
type JointConfig struct {
	ID           string  `json:"id" yaml:"id"`
	Function     string  `json:"function,omitempty" yaml:"function,omitempty"`
	DefaultAngle float64 `json:"default_angle" yaml:"default_angle"`
	MinAngle     float64 `json:"min_angle" yaml:"min_angle"`
	MaxAngle     float64 `json:"max_angle" yaml:"max_angle"`

	// Reading at which the driven segment lines up with its parent.
	// Defaults to the middle of [MinAngle, MaxAngle].
	HomeAngle *float64 `json:"home_angle,omitempty" yaml:"home_angle,omitempty"`
}

// SegmentConfig describes one rigid link. Length is in meters.
type SegmentConfig struct {
	ID     string  `json:"id" yaml:"id"`
	Length float64 `json:"length" yaml:"length"`
	Axis   string  `json:"axis" yaml:"axis"`
}

// LinkConfig pairs a segment with the joint that drives it.
type LinkConfig struct {
	Joint   JointConfig   `json:"joint" yaml:"joint"`
	Segment SegmentConfig `json:"segment" yaml:"segment"`
}

// ArmConfig is the externally supplied description of an arm. Chain order is
// the physical order from the base outwards. Actuators are end-effector
// joints (e.g. a gripper) that are not part of the kinematic chain.
type ArmConfig struct {
	Name      string        `json:"name,omitempty" yaml:"name,omitempty"`
	Chain     []LinkConfig  `json:"chain" yaml:"chain"`
	Actuators []JointConfig `json:"actuators,omitempty" yaml:"actuators,omitempty"`
}

func ptr(v float64) *float64 { return &v }

// DefaultArmConfig returns the five segment desktop arm with a gripper servo.
func DefaultArmConfig() ArmConfig {
	joint := func(id, function string, def float64) JointConfig {
		return JointConfig{ID: id, Function: function, DefaultAngle: def, MinAngle: 0, MaxAngle: 180, HomeAngle: ptr(90)}
	}
	return ArmConfig{
		Name: "desktop-arm",
		Chain: []LinkConfig{
			{Joint: joint("s1", "waist", 90), Segment: SegmentConfig{ID: "seg1", Length: 0.098507, Axis: "Z"}},
			{Joint: joint("s2", "shoulder", 150), Segment: SegmentConfig{ID: "seg2", Length: 0.120, Axis: "Y"}},
			{Joint: joint("s3", "elbow", 35), Segment: SegmentConfig{ID: "seg3", Length: 0.11865, Axis: "Y"}},
			{Joint: joint("s4", "wrist_roll", 140), Segment: SegmentConfig{ID: "seg4", Length: 0.060028, Axis: "X"}},
			{Joint: joint("s5", "wrist_pitch", 85), Segment: SegmentConfig{ID: "seg5", Length: 0.030175, Axis: "Y"}},
		},
		Actuators: []JointConfig{
			joint("s6", "grip", 80),
		},
	}
}

// Validate checks the configuration, returning a *ConfigurationError for the
// first problem found. path prefixes reported field names.
func (cfg *ArmConfig) Validate(path string) error {
	if len(cfg.Chain) == 0 {
		return configErrorf(fieldPath(path, "chain"), "kinematic chain is empty")
	}

	jointIDs := make(map[string]bool)
	segmentIDs := make(map[string]bool)

	for i, link := range cfg.Chain {
		linkPath := fieldPath(path, fmt.Sprintf("chain.%d", i))
		if err := link.Joint.Validate(fieldPath(linkPath, "joint")); err != nil {
			return err
		}
		if jointIDs[link.Joint.ID] {
			return configErrorf(fieldPath(linkPath, "joint.id"), "duplicate joint id %q", link.Joint.ID)
		}
		jointIDs[link.Joint.ID] = true

		if err := link.Segment.Validate(fieldPath(linkPath, "segment")); err != nil {
			return err
		}
		if segmentIDs[link.Segment.ID] {
			return configErrorf(fieldPath(linkPath, "segment.id"), "duplicate segment id %q", link.Segment.ID)
		}
		segmentIDs[link.Segment.ID] = true
	}

	for i, act := range cfg.Actuators {
		actPath := fieldPath(path, fmt.Sprintf("actuators.%d", i))
		if err := act.Validate(actPath); err != nil {
			return err
		}
		if jointIDs[act.ID] {
			return configErrorf(fieldPath(actPath, "id"), "duplicate joint id %q", act.ID)
		}
		jointIDs[act.ID] = true
	}

	return nil
}

// Validate checks a single joint's limits.
func (jc *JointConfig) Validate(path string) error {
	if strings.TrimSpace(jc.ID) == "" {
		return configErrorf(fieldPath(path, "id"), "joint id must be specified")
	}
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"min_angle", jc.MinAngle},
		{"max_angle", jc.MaxAngle},
		{"default_angle", jc.DefaultAngle},
	} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return configErrorf(fieldPath(path, f.name), "must be finite, got %v", f.value)
		}
	}
	if jc.MinAngle > jc.MaxAngle {
		return configErrorf(fieldPath(path, "min_angle"),
			"min_angle %.2f is greater than max_angle %.2f", jc.MinAngle, jc.MaxAngle)
	}
	if jc.DefaultAngle < jc.MinAngle || jc.DefaultAngle > jc.MaxAngle {
		return configErrorf(fieldPath(path, "default_angle"),
			"default_angle %.2f outside [%.2f, %.2f]", jc.DefaultAngle, jc.MinAngle, jc.MaxAngle)
	}
	if jc.HomeAngle != nil {
		home := *jc.HomeAngle
		if math.IsNaN(home) || home < jc.MinAngle || home > jc.MaxAngle {
			return configErrorf(fieldPath(path, "home_angle"),
				"home_angle %.2f outside [%.2f, %.2f]", home, jc.MinAngle, jc.MaxAngle)
		}
	}
	return nil
}

// home returns the configured home angle or the middle of the range.
func (jc *JointConfig) home() float64 {
	if jc.HomeAngle != nil {
		return *jc.HomeAngle
	}
	return (jc.MinAngle + jc.MaxAngle) / 2
}

// Validate checks a single segment's geometry.
func (sc *SegmentConfig) Validate(path string) error {
	if strings.TrimSpace(sc.ID) == "" {
		return configErrorf(fieldPath(path, "id"), "segment id must be specified")
	}
	if math.IsNaN(sc.Length) || math.IsInf(sc.Length, 0) || sc.Length <= 0 {
		return configErrorf(fieldPath(path, "length"), "length must be positive, got %v", sc.Length)
	}
	if _, err := ParseAxis(sc.Axis); err != nil {
		return configErrorf(fieldPath(path, "axis"), "%v", err)
	}
	return nil
}

func fieldPath(path, field string) string {
	if path == "" {
		return field
	}
	return path + "." + field
}

// LoadArmConfig loads the arm description from file or returns the default
// configuration. Returns (config, fromFile) where fromFile indicates if it
// was loaded from file.
func LoadArmConfig(configFile string, logger logging.Logger) (ArmConfig, bool) {
	if configFile == "" {
		if logger != nil {
			logger.Debug("No arm config file specified, using default arm")
		}
		return DefaultArmConfig(), false
	}

	cfg, err := LoadArmConfigFromFile(configFile)
	if err != nil {
		if logger != nil {
			logger.Warnf("Failed to load arm config from %s: %v, using default arm", configFile, err)
		}
		return DefaultArmConfig(), false
	}

	if logger != nil {
		logger.Infof("Loaded arm config %q from %s", cfg.Name, configFile)
	}
	return cfg, true
}

// LoadArmConfigFromFile parses a JSON or YAML arm description, chosen by file
// extension, and validates it.
func LoadArmConfigFromFile(filePath string) (ArmConfig, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return ArmConfig{}, errors.Wrap(err, "failed to read arm config file")
	}

	var cfg ArmConfig
	switch ext := strings.ToLower(filepath.Ext(filePath)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return ArmConfig{}, errors.Wrap(err, "failed to parse arm config YAML")
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return ArmConfig{}, errors.Wrap(err, "failed to parse arm config JSON")
		}
	default:
		return ArmConfig{}, errors.Errorf("unsupported arm config extension %q", ext)
	}

	if err := cfg.Validate(""); err != nil {
		return ArmConfig{}, errors.Wrapf(err, "arm config %s", filePath)
	}
	return cfg, nil
}

// SaveArmConfigToFile writes the configuration as JSON or YAML by extension.
func SaveArmConfigToFile(filePath string, cfg ArmConfig) error {
	var (
		data []byte
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(filePath)); ext {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	case ".json":
		data, err = json.MarshalIndent(cfg, "", "  ")
	default:
		return errors.Errorf("unsupported arm config extension %q", ext)
	}
	if err != nil {
		return errors.Wrap(err, "failed to marshal arm config")
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write arm config file")
	}
	return nil
}
