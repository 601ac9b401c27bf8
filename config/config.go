// Package config holds the immutable thresholds and policy switches that
// govern Transition Period detection and characterisation. Analogous to the
// teacher's sim.Config groupings (sim/config.go), a Config here is built
// once at Slave.Initialise and never mutated afterwards.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DerivativeThresholds groups the per-channel derivative cut points used by
// the sample classifier (spec §4.C). Units are V/s for the voltage channel
// and A/s for the current channel.
type DerivativeThresholds struct {
	JumpDer  float64 `yaml:"jump_der"`
	SlopeDer float64 `yaml:"slope_der"`
	QCCDer   float64 `yaml:"qcc_der"`
	TailDer  float64 `yaml:"tail_der"`
}

// CountBounds groups the minimum/maximum admissible sample counts for one
// class within a Transition Period window.
type CountBounds struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// GrammarPolicy groups the "strong"/"lenient" switches that control how
// strictly the TP grammar (spec §4.D) is enforced.
type GrammarPolicy struct {
	StrongQCC        bool `yaml:"strong_qcc"`
	StrongJump        bool `yaml:"strong_jump"`
	StrongTail        bool `yaml:"strong_tail"`
	StrongJumpSlope   bool `yaml:"strong_jump_slope"`
	StrongSlope       bool `yaml:"strong_slope"`
	StrongSlopeTail   bool `yaml:"strong_slope_tail"`
	StrongDRight      bool `yaml:"strong_d_right"`
	SlopeMustExist    bool `yaml:"slope_must_exist"`
	AlignSlopes       bool `yaml:"align_slopes"`
	StrongTPType      bool `yaml:"strong_tp_type"`
}

// EndpointAveraging groups the offsets and sample counts used to average
// points A and D (spec §4.E).
type EndpointAveraging struct {
	OffPointALeft  int `yaml:"off_point_a_left"`
	OffPointDRight int `yaml:"off_point_d_right"`
	OffPointCount  int `yaml:"off_point_count"`
}

// Config is the spec's Configuration record C: immutable after Setup.
type Config struct {
	// Sampling period bounds, microseconds.
	MinSamplingPeriodUS int64 `yaml:"min_sampling_period_us"`
	MaxSamplingPeriodUS int64 `yaml:"max_sampling_period_us"`

	// Raw-sample acceptance bounds.
	MinVoltageVolts  float64 `yaml:"min_voltage_volts"`
	MaxVoltageVolts  float64 `yaml:"max_voltage_volts"`
	MaxCurrentAmps   float64 `yaml:"max_current_amps"`
	MaxCurrent0Amps  float64 `yaml:"max_current_0_amps"` // ~0.1 C-rate, open-circuit heuristic

	Voltage DerivativeThresholds `yaml:"voltage_derivative"`
	Current DerivativeThresholds `yaml:"current_derivative"`

	MinR2QCC   float64 `yaml:"min_r2_qcc"`
	MinR2Slope float64 `yaml:"min_r2_slope"`
	MinR2Tail  float64 `yaml:"min_r2_tail"`

	NQCC  CountBounds `yaml:"n_qcc"`
	NJump CountBounds `yaml:"n_jump"`
	NSlope CountBounds `yaml:"n_slope"`
	NTail CountBounds `yaml:"n_tail"`

	TPDetCntMax   int `yaml:"tp_det_cnt_max"`
	TPDetSlopeR2  float64 `yaml:"tp_det_slope_r2"`

	Endpoints EndpointAveraging `yaml:"endpoints"`

	Policy GrammarPolicy `yaml:"policy"`

	// SoSThreshold holds the five per-parameter thresholds (p0..p4, spec
	// §4.F): internal resistance, relaxation resistance, capacitance-like
	// term, and two curvature coefficients.
	SoSThreshold [5]float64 `yaml:"sos_threshold"`

	// EpsilonZero is the singularity/zero-division floor used throughout
	// internal/numeric.
	EpsilonZero float64 `yaml:"epsilon_zero"`

	// NominalCapacityAh is used to normalise accumulated charge into SoC.
	NominalCapacityAh float64 `yaml:"nominal_capacity_ah"`
}

// DefaultConfig returns the literal thresholds used by the reference trace
// replays in internal/tp's and slave's end-to-end tests. Values mirror the
// magnitudes implied by the TestVoltageArray/TestCurrentArray scenarios in
// spec.md §8, not a specific production calibration.
func DefaultConfig() Config {
	return Config{
		MinSamplingPeriodUS: 5_000,
		MaxSamplingPeriodUS: 200_000,

		MinVoltageVolts: 2.0,
		MaxVoltageVolts: 4.35,
		MaxCurrentAmps:  600,
		MaxCurrent0Amps: 60, // 0.1 C-rate of a ~600 Ah-class pack build

		Voltage: DerivativeThresholds{
			JumpDer:  2.0,
			SlopeDer: 0.3,
			QCCDer:   0.01,
			TailDer:  0.05,
		},
		Current: DerivativeThresholds{
			JumpDer:  50.0,
			SlopeDer: 5.0,
			QCCDer:   0.5,
			TailDer:  2.0,
		},

		MinR2QCC:   0.0,
		MinR2Slope: 0.7,
		MinR2Tail:  0.0,

		NQCC:   CountBounds{Min: 3, Max: 40},
		NJump:  CountBounds{Min: 1, Max: 6},
		NSlope: CountBounds{Min: 0, Max: 15},
		NTail:  CountBounds{Min: 2, Max: 20},

		TPDetCntMax:  30,
		TPDetSlopeR2: 0.7,

		Endpoints: EndpointAveraging{
			OffPointALeft:  5,
			OffPointDRight: 3,
			OffPointCount:  5,
		},

		Policy: GrammarPolicy{
			StrongQCC:      true,
			StrongJump:     true,
			StrongTail:     false,
			StrongJumpSlope: false,
			StrongSlope:    true,
			StrongSlopeTail: true,
			StrongDRight:   false,
			SlopeMustExist: false,
			AlignSlopes:    true,
			StrongTPType:   true,
		},

		SoSThreshold: [5]float64{0.010, 0.015, 5.0, 1.0, 1.0},

		EpsilonZero: 1e-30,

		NominalCapacityAh: 100.0,
	}
}

// Load reads a Config from a YAML file, overlaying it onto DefaultConfig so
// a scenario file only needs to name the fields it overrides. Mirrors the
// teacher's sim/workload/spec.go pattern of decoding declarative YAML
// scenario files with gopkg.in/yaml.v3.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %q: %w", path, err)
	}
	return cfg, nil
}
