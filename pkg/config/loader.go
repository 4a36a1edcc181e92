package config

import (
	"fmt"
	"math"
	"os"

	"github.com/GoSim-25-26J-441/egosim/internal/outcome"
	"github.com/GoSim-25-26J-441/egosim/pkg/models"
)

// LoadConfig loads and parses a configuration file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := ParseConfigYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// validateConfig performs validation on the configuration
func validateConfig(cfg *Config) error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", cfg.LogLevel)
	}
	if cfg.Workers < 0 {
		return fmt.Errorf("workers cannot be negative, got %d", cfg.Workers)
	}

	if err := validateGraph(&cfg.Graph); err != nil {
		return fmt.Errorf("graph validation failed: %w", err)
	}

	if len(cfg.Experiments) == 0 {
		return fmt.Errorf("at least one experiment must be defined")
	}
	names := make(map[string]bool)
	for i := range cfg.Experiments {
		e := &cfg.Experiments[i]
		if e.Name == "" {
			return fmt.Errorf("experiment %d: name cannot be empty", i)
		}
		if names[e.Name] {
			return fmt.Errorf("duplicate experiment name: %s", e.Name)
		}
		names[e.Name] = true
		if err := validateExperiment(e); err != nil {
			return fmt.Errorf("experiment %s: %w", e.Name, err)
		}
	}

	// clustering is only required when something consumes it
	if cfg.NeedsClustering() {
		if err := validateClustering(&cfg.Clustering); err != nil {
			return fmt.Errorf("clustering validation failed: %w", err)
		}
	}

	return validateOutput(&cfg.Output)
}

// validateGraph validates the graph source
func validateGraph(g *GraphSource) error {
	if g.Synthetic != nil {
		if g.Path != "" {
			return fmt.Errorf("path and synthetic are mutually exclusive")
		}
		if g.Synthetic.Nodes < 3 {
			return fmt.Errorf("synthetic nodes must be at least 3, got %d", g.Synthetic.Nodes)
		}
		if g.Synthetic.Chords < 0 {
			return fmt.Errorf("synthetic chords cannot be negative, got %d", g.Synthetic.Chords)
		}
		return nil
	}
	if g.Path == "" {
		return fmt.Errorf("either path or synthetic must be set")
	}
	if g.HeaderLines() < 0 {
		return fmt.Errorf("skip_header cannot be negative, got %d", g.HeaderLines())
	}
	return nil
}

// validateClustering validates the ego clustering parameters
func validateClustering(c *Clustering) error {
	if math.IsNaN(c.LossRatesThreshold) || c.LossRatesThreshold < 0 || c.LossRatesThreshold >= 1 {
		return fmt.Errorf("loss_rates_threshold must be in [0, 1), got %v", c.LossRatesThreshold)
	}
	if c.NumBins <= 0 {
		return fmt.Errorf("num_bins must be positive, got %d", c.NumBins)
	}
	return nil
}

// validateExperiment validates a single experiment
func validateExperiment(e *Experiment) error {
	if !e.Design.Valid() {
		return fmt.Errorf("invalid design: %s (must be %s or %s)", e.Design,
			models.DesignEgoCluster, models.DesignEgoGroupPartition)
	}
	if e.Design == models.DesignEgoGroupPartition {
		if math.IsNaN(e.EgoRatio) || e.EgoRatio < 0 || e.EgoRatio >= 1 {
			return fmt.Errorf("ego_ratio must be in [0, 1), got %v", e.EgoRatio)
		}
		if math.IsNaN(e.Threshold) || math.IsInf(e.Threshold, 0) {
			return fmt.Errorf("threshold must be finite, got %v", e.Threshold)
		}
	}
	if len(e.Models) == 0 {
		return fmt.Errorf("at least one model must be listed")
	}
	for _, m := range e.Models {
		if _, err := outcome.ParseModel(m); err != nil {
			return err
		}
	}
	if e.Repetitions <= 0 {
		return fmt.Errorf("repetitions must be positive, got %d", e.Repetitions)
	}
	if e.Batches <= 0 {
		return fmt.Errorf("batches must be positive, got %d", e.Batches)
	}
	return nil
}

// validateOutput validates the output configuration
func validateOutput(o *Output) error {
	validFormats := map[string]bool{
		"json":    true,
		"msgpack": true,
	}
	if !validFormats[o.Format] {
		return fmt.Errorf("invalid output format: %s (must be json or msgpack)", o.Format)
	}
	return nil
}
