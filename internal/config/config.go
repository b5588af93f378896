// Package config loads a simulator run's configuration from YAML,
// validates it, and constructs the immutable value-object every
// component is built from. There is no global config state: Load returns
// a *Config that callers thread explicitly into internal/sim.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aeromesh/aeromesh/internal/vtime"
)

// ConfigError collects every validation problem found in a config file,
// rather than failing on the first one, per the run's "non-zero exit on
// configuration error, report every problem" contract.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", strings.Join(e.Problems, "; "))
}

// Node describes one drone's static placement and plug-in choices.
type Node struct {
	ID       string  `yaml:"id"`
	X        float64 `yaml:"x"`
	Y        float64 `yaml:"y"`
	Z        float64 `yaml:"z"`
	Vx       float64 `yaml:"vx"`
	Vy       float64 `yaml:"vy"`
	Vz       float64 `yaml:"vz"`
	Mobility string  `yaml:"mobility"` // "static" or "waypoint"
	Energy   string  `yaml:"energy"`   // "unlimited" or "linear"
	Routing  string  `yaml:"routing"`  // "flood" or "static"

	// Linear energy parameters; ignored unless Energy == "linear".
	EnergyCapacityJ    float64 `yaml:"energy_capacity_j"`
	EnergyJoulesPerBit float64 `yaml:"energy_joules_per_bit"`
	EnergyFlightWatts  float64 `yaml:"energy_flight_watts"`
}

// Session describes one traffic-generator flow (spec §6 traffic
// generation, the "SUPPLEMENTED FEATURES" uniform/Poisson inter-arrival
// process).
type Session struct {
	Source      string  `yaml:"source"`
	Destination string  `yaml:"destination"`
	Mode        string  `yaml:"mode"` // "unicast", "multicast", "broadcast"
	SizeBits    int     `yaml:"size_bits"`
	RateHz      float64 `yaml:"rate_hz"`
	Arrival     string  `yaml:"arrival"` // "uniform" or "poisson"
	StartAt     float64 `yaml:"start_at_s"`
	StopAt      float64 `yaml:"stop_at_s"`
}

// Channel describes one shared radio group's PHY policy.
type Channel struct {
	Name        string  `yaml:"name"`
	Policy      string  `yaml:"policy"` // "los", "probabilistic", "range"
	LossProb    float64 `yaml:"loss_prob"`
	PathLossExp float64 `yaml:"path_loss_exponent"`
	RefDistance float64 `yaml:"reference_distance_m"`
	Sensitivity float64 `yaml:"sensitivity_watts"`
	NoiseFloor  float64 `yaml:"noise_floor_watts"`
	TxPowerW    float64 `yaml:"tx_power_watts"`
}

// MAC holds the CSMA/CA and ALOHA protocol timing constants from spec §4.5.
type MAC struct {
	Protocol        string  `yaml:"protocol"` // "csmaca" or "aloha"
	DIFSUs          float64 `yaml:"difs_us"`
	SIFSUs          float64 `yaml:"sifs_us"`
	SlotTimeUs      float64 `yaml:"slot_time_us"`
	CWMin           int     `yaml:"cw_min"`
	CWMax           int     `yaml:"cw_max"`
	RetryLimit      int     `yaml:"retry_limit"`
	AckSizeBits     int     `yaml:"ack_size_bits"`
	AckSlackUs      float64 `yaml:"ack_slack_us"`
	AlohaRetryScale int     `yaml:"aloha_retry_scale"`
}

// Config is the full, validated root of a simulation run.
type Config struct {
	Seed          int64     `yaml:"seed"`
	DurationS     float64   `yaml:"duration_s"`
	ResolverTickUs float64  `yaml:"resolver_tick_us"`
	MaxAirTimeUs  float64   `yaml:"max_air_time_us"`
	FeedIntervalUs float64  `yaml:"feed_interval_us"`
	TTLDefault    int       `yaml:"ttl_default"`
	MCS           string    `yaml:"mcs"` // "robust" or "fast"
	LogLevel      string    `yaml:"log_level"`
	Channels      []Channel `yaml:"channels"`
	Nodes         []Node    `yaml:"nodes"`
	Sessions      []Session `yaml:"sessions"`
	MACConfig     MAC       `yaml:"mac"`
}

// Load reads and parses path, then validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Problems: []string{fmt.Sprintf("reading %s: %v", path, err)}}
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &ConfigError{Problems: []string{fmt.Sprintf("parsing %s: %v", path, err)}}
	}

	applyDefaults(&cfg)

	if problems := cfg.validate(); len(problems) > 0 {
		return nil, &ConfigError{Problems: problems}
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ResolverTickUs == 0 {
		cfg.ResolverTickUs = 500
	}
	if cfg.MaxAirTimeUs == 0 {
		cfg.MaxAirTimeUs = 10_000
	}
	if cfg.FeedIntervalUs == 0 {
		cfg.FeedIntervalUs = 200
	}
	if cfg.TTLDefault == 0 {
		cfg.TTLDefault = 8
	}
	if cfg.MCS == "" {
		cfg.MCS = "robust"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.MACConfig.Protocol == "" {
		cfg.MACConfig.Protocol = "csmaca"
	}
	if cfg.MACConfig.CWMin == 0 {
		cfg.MACConfig.CWMin = 16
	}
	if cfg.MACConfig.CWMax == 0 {
		cfg.MACConfig.CWMax = 1024
	}
	if cfg.MACConfig.RetryLimit == 0 {
		cfg.MACConfig.RetryLimit = 5
	}
	if cfg.MACConfig.AckSizeBits == 0 {
		cfg.MACConfig.AckSizeBits = 112
	}
	if cfg.MACConfig.AlohaRetryScale == 0 {
		cfg.MACConfig.AlohaRetryScale = 4
	}
	if cfg.MACConfig.DIFSUs == 0 {
		cfg.MACConfig.DIFSUs = 100
	}
	if cfg.MACConfig.SIFSUs == 0 {
		cfg.MACConfig.SIFSUs = 20
	}
	if cfg.MACConfig.SlotTimeUs == 0 {
		cfg.MACConfig.SlotTimeUs = 10
	}
	if cfg.MACConfig.AckSlackUs == 0 {
		cfg.MACConfig.AckSlackUs = 50
	}
}

func (cfg *Config) validate() []string {
	var problems []string

	if cfg.DurationS <= 0 {
		problems = append(problems, "duration_s must be positive")
	}
	if len(cfg.Nodes) == 0 {
		problems = append(problems, "at least one node is required")
	}
	if len(cfg.Channels) == 0 {
		problems = append(problems, "at least one channel is required")
	}
	if cfg.MCS != "robust" && cfg.MCS != "fast" {
		problems = append(problems, fmt.Sprintf("mcs must be \"robust\" or \"fast\", got %q", cfg.MCS))
	}
	if cfg.MACConfig.Protocol != "csmaca" && cfg.MACConfig.Protocol != "aloha" {
		problems = append(problems, fmt.Sprintf("mac.protocol must be \"csmaca\" or \"aloha\", got %q", cfg.MACConfig.Protocol))
	}

	ids := make(map[string]bool, len(cfg.Nodes))
	for i, n := range cfg.Nodes {
		if n.ID == "" {
			problems = append(problems, fmt.Sprintf("nodes[%d]: id is required", i))
			continue
		}
		if ids[n.ID] {
			problems = append(problems, fmt.Sprintf("nodes[%d]: duplicate id %q", i, n.ID))
		}
		ids[n.ID] = true
		if n.Mobility != "" && n.Mobility != "static" && n.Mobility != "waypoint" {
			problems = append(problems, fmt.Sprintf("nodes[%d]: mobility must be \"static\" or \"waypoint\", got %q", i, n.Mobility))
		}
		if n.Energy != "" && n.Energy != "unlimited" && n.Energy != "linear" {
			problems = append(problems, fmt.Sprintf("nodes[%d]: energy must be \"unlimited\" or \"linear\", got %q", i, n.Energy))
		}
		if n.Routing != "" && n.Routing != "flood" && n.Routing != "static" {
			problems = append(problems, fmt.Sprintf("nodes[%d]: routing must be \"flood\" or \"static\", got %q", i, n.Routing))
		}
	}

	for i, s := range cfg.Sessions {
		if s.Source == "" || !ids[s.Source] {
			problems = append(problems, fmt.Sprintf("sessions[%d]: unknown source %q", i, s.Source))
		}
		if s.Mode != "broadcast" && (s.Destination == "" || !ids[s.Destination]) {
			problems = append(problems, fmt.Sprintf("sessions[%d]: unknown destination %q", i, s.Destination))
		}
		if s.RateHz <= 0 {
			problems = append(problems, fmt.Sprintf("sessions[%d]: rate_hz must be positive", i))
		}
		if s.Arrival != "" && s.Arrival != "uniform" && s.Arrival != "poisson" {
			problems = append(problems, fmt.Sprintf("sessions[%d]: arrival must be \"uniform\" or \"poisson\", got %q", i, s.Arrival))
		}
	}

	for i, c := range cfg.Channels {
		switch c.Policy {
		case "los", "probabilistic", "range":
		default:
			problems = append(problems, fmt.Sprintf("channels[%d]: policy must be \"los\", \"probabilistic\", or \"range\", got %q", i, c.Policy))
		}
	}

	return problems
}

// Duration returns the configured run length as virtual time.
func (cfg *Config) Duration() vtime.Duration { return vtime.FromSeconds(cfg.DurationS) }

func (cfg *Config) ResolverTick() vtime.Duration { return vtime.FromMillis(cfg.ResolverTickUs / 1000) }
func (cfg *Config) MaxAirTime() vtime.Duration   { return vtime.FromMillis(cfg.MaxAirTimeUs / 1000) }
func (cfg *Config) FeedInterval() vtime.Duration { return vtime.FromMillis(cfg.FeedIntervalUs / 1000) }

func (m MAC) DIFS() vtime.Duration     { return vtime.FromMillis(m.DIFSUs / 1000) }
func (m MAC) SIFS() vtime.Duration     { return vtime.FromMillis(m.SIFSUs / 1000) }
func (m MAC) SlotTime() vtime.Duration { return vtime.FromMillis(m.SlotTimeUs / 1000) }
func (m MAC) AckSlack() vtime.Duration { return vtime.FromMillis(m.AckSlackUs / 1000) }
