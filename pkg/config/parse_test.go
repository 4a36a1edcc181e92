package config

import "testing"

func TestParseConfigYAMLString(t *testing.T) {
	yamlText := `
graph:
  path: edges.txt
clustering:
  loss_rates_threshold: 0.5
  num_bins: 4
experiments:
  - name: ec
    design: ego_cluster
    models: [linear]
    repetitions: 10
`

	cfg, err := ParseConfigYAMLString(yamlText)
	if err != nil {
		t.Fatalf("ParseConfigYAMLString failed: %v", err)
	}
	if cfg == nil {
		t.Fatalf("expected non-nil config")
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("expected default log_level info, got %q", cfg.LogLevel)
	}
	if cfg.Output.Format != "json" || cfg.Output.Dir != "results" {
		t.Fatalf("expected default output json in results, got %+v", cfg.Output)
	}
	if cfg.Experiments[0].Batches != 1 {
		t.Fatalf("expected default batches 1, got %d", cfg.Experiments[0].Batches)
	}
	if cfg.Graph.HeaderLines() != 1 {
		t.Fatalf("expected default skip_header 1, got %d", cfg.Graph.HeaderLines())
	}
}

func TestParseConfigYAMLStringFormatCase(t *testing.T) {
	yamlText := `
graph:
  synthetic: {nodes: 50, chords: 50}
experiments:
  - name: egp
    design: ego_group_partition
    ego_ratio: 0.2
    models: [convex]
    repetitions: 5
output:
  format: MsgPack
`
	cfg, err := ParseConfigYAMLString(yamlText)
	if err != nil {
		t.Fatalf("ParseConfigYAMLString failed: %v", err)
	}
	if cfg.Output.Format != "msgpack" {
		t.Fatalf("expected format msgpack, got %q", cfg.Output.Format)
	}
	if cfg.NeedsClustering() {
		t.Fatal("explicit ego ratio partition should not need clustering")
	}
}

func TestParseConfigYAMLStringInvalid(t *testing.T) {
	tests := []struct {
		name     string
		yamlText string
	}{
		{
			name: "Invalid log level",
			yamlText: `
log_level: nope
graph: {path: edges.txt}
clustering: {loss_rates_threshold: 0.5, num_bins: 4}
experiments:
  - {name: ec, design: ego_cluster, models: [linear], repetitions: 10}`,
		},
		{
			name: "Missing experiments",
			yamlText: `
graph: {path: edges.txt}
experiments: []`,
		},
		{
			name: "Missing clustering",
			yamlText: `
graph: {path: edges.txt}
experiments:
  - {name: ec, design: ego_cluster, models: [linear], repetitions: 10}`,
		},
		{
			name: "Infinite threshold",
			yamlText: `
graph: {path: edges.txt}
experiments:
  - {name: egp, design: ego_group_partition, ego_ratio: 0.2, threshold: .inf, models: [linear], repetitions: 10}`,
		},
		{
			name: "Negative batches",
			yamlText: `
graph: {path: edges.txt}
clustering: {loss_rates_threshold: 0.5, num_bins: 4}
experiments:
  - {name: ec, design: ego_cluster, models: [linear], repetitions: 10, batches: -2}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfigYAMLString(tt.yamlText)
			if err == nil {
				t.Fatalf("expected validation error for %s", tt.name)
			}
		})
	}
}

func TestParseConfigYAMLStringMalformed(t *testing.T) {
	if _, err := ParseConfigYAMLString("graph: [unterminated"); err == nil {
		t.Fatal("expected parse error for malformed yaml")
	}
}
