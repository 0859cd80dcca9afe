package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// testConfig writes a small config with a store in a temp dir and returns
// its path. HOME is sandboxed so nothing touches ~/.cascadelab.
func testConfig(t *testing.T) (configPath, dir string) {
	t.Helper()
	dir = t.TempDir()
	t.Setenv("HOME", filepath.Join(dir, "home"))

	configPath = filepath.Join(dir, "config.yaml")
	content := `topology:
  preset: BA
  nodes: 150
  seed: 3
  attribute_mode: degree
cascade:
  iterations: 8
  seed: 11
ensemble:
  runs: 5
  workers: 2
  histogram_bins: 10
store:
  path: ` + filepath.Join(dir, "store", "results.db") + `
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return configPath, dir
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "cascadelab version "+version) {
		t.Errorf("unexpected output: %q", out)
	}

	out, err = execute(t, "version", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var v map[string]string
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if v["version"] != version {
		t.Errorf("version = %q, want %q", v["version"], version)
	}
}

func TestTopologiesCmd(t *testing.T) {
	out, err := execute(t, "topologies")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Erdos-Renyi", "Watts-Strogatz", "Barabasi-Albert", "Holme-Kim", "m=3 p_t=0.3"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunCmd_Text(t *testing.T) {
	cfg, _ := testConfig(t)

	out, err := execute(t, "--config", cfg, "run")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	for _, want := range []string{"Topology: BA (150 nodes)", "degree gini", "Final reach over 5 runs"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunCmd_JSONAndFlags(t *testing.T) {
	cfg, _ := testConfig(t)

	out, err := execute(t, "--config", cfg, "--json", "run", "--topology", "ER", "--iterations", "4", "--runs", "0")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	var result struct {
		Experiment struct {
			Topology struct {
				Kind string `json:"kind"`
			} `json:"topology"`
			TimeSeries []map[string]any `json:"timeseries"`
			Runs       int              `json:"runs"`
		} `json:"experiment"`
		Saved bool `json:"saved"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if len(result.Experiment.TimeSeries) != 4 {
		t.Errorf("got %d rows, want 4", len(result.Experiment.TimeSeries))
	}
	if result.Experiment.Runs != 0 || result.Saved {
		t.Errorf("runs = %d, saved = %v", result.Experiment.Runs, result.Saved)
	}
}

func TestRunCmd_SaveAndHistory(t *testing.T) {
	cfg, dir := testConfig(t)
	arrowPath := filepath.Join(dir, "series.arrow")

	out, err := execute(t, "--config", cfg, "run", "--save", "--arrow", arrowPath)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	idx := strings.Index(out, "Saved as ")
	if idx < 0 {
		t.Fatalf("no saved ID in output:\n%s", out)
	}
	id := strings.TrimSpace(out[idx+len("Saved as "):])

	if info, err := os.Stat(arrowPath); err != nil || info.Size() == 0 {
		t.Errorf("arrow file not written: %v", err)
	}

	out, err = execute(t, "--config", cfg, "history", "list")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, id) {
		t.Errorf("history list missing %s:\n%s", id, out)
	}

	out, err = execute(t, "--config", cfg, "--json", "history", "show", id)
	if err != nil {
		t.Fatal(err)
	}
	var exp struct {
		ID       string    `json:"id"`
		Outcomes []float64 `json:"outcomes"`
	}
	if err := json.Unmarshal([]byte(out), &exp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if exp.ID != id || len(exp.Outcomes) != 5 {
		t.Errorf("got experiment %s with %d outcomes", exp.ID, len(exp.Outcomes))
	}

	if _, err := execute(t, "--config", cfg, "history", "delete", id); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "--config", cfg, "history", "show", id); err == nil {
		t.Error("expected error showing deleted experiment")
	}
}

func TestHistoryListEmpty(t *testing.T) {
	cfg, _ := testConfig(t)

	out, err := execute(t, "--config", cfg, "--json", "history", "list")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "[]" {
		t.Errorf("output = %q, want []", out)
	}
}

func TestMontecarloCmd(t *testing.T) {
	cfg, dir := testConfig(t)
	arrowPath := filepath.Join(dir, "outcomes.arrow")

	out, err := execute(t, "--config", cfg, "--json", "montecarlo", "--runs", "7", "--arrow", arrowPath)
	if err != nil {
		t.Fatalf("montecarlo failed: %v", err)
	}

	var result struct {
		Outcomes  []float64        `json:"outcomes"`
		Histogram []map[string]any `json:"histogram"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(result.Outcomes) != 7 {
		t.Errorf("got %d outcomes, want 7", len(result.Outcomes))
	}
	if len(result.Histogram) != 10 {
		t.Errorf("got %d bins, want 10", len(result.Histogram))
	}
	if _, err := os.Stat(arrowPath); err != nil {
		t.Errorf("arrow file not written: %v", err)
	}
}

func TestMetricsCmd(t *testing.T) {
	cfg, _ := testConfig(t)

	out, err := execute(t, "--config", cfg, "--json", "metrics", "--topology", "WS", "--nodes", "60")
	if err != nil {
		t.Fatal(err)
	}
	var result struct {
		Metrics struct {
			Nodes int `json:"nodes"`
		} `json:"metrics"`
		Components         int              `json:"components"`
		DegreeDistribution []map[string]int `json:"degree_distribution"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if result.Metrics.Nodes != 60 {
		t.Errorf("nodes = %d, want 60", result.Metrics.Nodes)
	}
	if result.Components < 1 || len(result.DegreeDistribution) == 0 {
		t.Errorf("components = %d, distribution = %v", result.Components, result.DegreeDistribution)
	}
}

func TestGraphExportRoundTrip(t *testing.T) {
	cfg, dir := testConfig(t)
	graphPath := filepath.Join(dir, "graph.yaml")

	if _, err := execute(t, "--config", cfg, "graph", "export", "--nodes", "40", "-o", graphPath); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	out, err := execute(t, "--config", cfg, "run", "--graph", graphPath, "--keep-attributes", "--runs", "2")
	if err != nil {
		t.Fatalf("run --graph failed: %v", err)
	}
	if !strings.Contains(out, "Topology: file (40 nodes)") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestRunCmd_Errors(t *testing.T) {
	cfg, dir := testConfig(t)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown preset", []string{"run", "--topology", "grid"}},
		{"keep attributes without graph", []string{"run", "--keep-attributes"}},
		{"missing graph file", []string{"run", "--graph", filepath.Join(dir, "nope.yaml")}},
		{"negative runs", []string{"run", "--runs", "-1"}},
		{"bad log level", []string{"--log-level", "loud", "run"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--config", cfg}, tt.args...)
			if _, err := execute(t, args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestGraphExportDOTSnapshot(t *testing.T) {
	cfg, _ := testConfig(t)

	out, err := execute(t, "--config", cfg, "graph", "export", "--nodes", "30", "--format", "dot", "--snapshot", "2")
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if !strings.HasPrefix(out, "graph cascade {") || !strings.Contains(out, `label="iteration 2"`) {
		t.Errorf("unexpected DOT output:\n%s", out)
	}
	if !strings.Contains(out, `fillcolor="tomato"`) {
		t.Error("no broadcasting node in snapshot")
	}

	if _, err := execute(t, "--config", cfg, "graph", "export", "--snapshot", "1"); err == nil {
		t.Error("expected error for --snapshot with yaml format")
	}
	if _, err := execute(t, "--config", cfg, "graph", "export", "--format", "png"); err == nil {
		t.Error("expected error for unknown format")
	}
}
