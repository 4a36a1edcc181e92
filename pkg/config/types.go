package config

import (
	"strings"

	"github.com/GoSim-25-26J-441/egosim/pkg/models"
)

// Config represents the experiment configuration
type Config struct {
	LogLevel    string       `yaml:"log_level"`
	Seed        int64        `yaml:"seed"`
	Workers     int          `yaml:"workers"`
	Graph       GraphSource  `yaml:"graph"`
	Clustering  Clustering   `yaml:"clustering"`
	Experiments []Experiment `yaml:"experiments"`
	Output      Output       `yaml:"output"`
}

// GraphSource describes where the network comes from: an edge list file
// or, when Synthetic is set, a generated ring with random chords
type GraphSource struct {
	Path       string     `yaml:"path,omitempty"`
	SkipHeader *int       `yaml:"skip_header,omitempty"`
	Synthetic  *Synthetic `yaml:"synthetic,omitempty"`
}

// Synthetic describes a generated graph
type Synthetic struct {
	Nodes  int `yaml:"nodes"`
	Chords int `yaml:"chords"`
}

// HeaderLines returns the number of leading lines to skip, defaulting to one
func (g GraphSource) HeaderLines() int {
	if g.SkipHeader == nil {
		return 1
	}
	return *g.SkipHeader
}

// Clustering represents the ego clustering parameters
type Clustering struct {
	LossRatesThreshold float64 `yaml:"loss_rates_threshold"`
	NumBins            int     `yaml:"num_bins"`
}

// Experiment represents one design evaluated under one or more outcome models
type Experiment struct {
	Name        string            `yaml:"name"`
	Design      models.DesignKind `yaml:"design"`
	EgoRatio    float64           `yaml:"ego_ratio,omitempty"` // 0 = clustering ego ratio
	Threshold   float64           `yaml:"threshold,omitempty"`
	Models      []string          `yaml:"models"`
	Repetitions int               `yaml:"repetitions"`
	Batches     int               `yaml:"batches"`
}

// Output represents where results are written
type Output struct {
	Dir     string `yaml:"dir"`
	Format  string `yaml:"format"` // json or msgpack
	Archive string `yaml:"archive,omitempty"`
}

// NeedsClustering reports whether any experiment depends on the ego clustering,
// either as its design or through an inherited ego ratio
func (c *Config) NeedsClustering() bool {
	for _, e := range c.Experiments {
		if e.Design == models.DesignEgoCluster || e.EgoRatio == 0 {
			return true
		}
	}
	return false
}

// applyDefaults fills optional fields
func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Output.Format == "" {
		cfg.Output.Format = "json"
	}
	cfg.Output.Format = strings.ToLower(cfg.Output.Format)
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "results"
	}
	for i := range cfg.Experiments {
		if cfg.Experiments[i].Batches == 0 {
			cfg.Experiments[i].Batches = 1
		}
	}
}
