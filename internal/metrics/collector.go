// Package metrics records how a simulation run progresses over time.
package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/egosim/pkg/models"
	"github.com/GoSim-25-26J-441/egosim/pkg/utils"
)

// Metric names
const (
	MetricTaskDuration = "task_duration_ms"
	MetricRepetitions  = "repetitions"
)

// Point is one recorded value
type Point struct {
	Timestamp time.Time         `json:"timestamp"`
	Name      string            `json:"metric"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
}

// Collector collects task metrics while a run executes. It is safe for
// concurrent use by the workers of a run.
type Collector struct {
	mu sync.RWMutex

	startTime time.Time
	endTime   time.Time
	total     int

	// metric name -> points in record order
	series map[string][]Point
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{
		series: make(map[string][]Point),
	}
}

// Start marks the start of a run of totalTasks tasks
func (c *Collector) Start(totalTasks int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startTime = time.Now()
	c.endTime = time.Time{}
	c.total = totalTasks
}

// Stop marks the end of the run
func (c *Collector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endTime = time.Now()
}

// Record records a metric value at the current time
func (c *Collector) Record(name string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.series[name] = append(c.series[name], Point{
		Timestamp: time.Now(),
		Name:      name,
		Value:     value,
		Labels:    copyLabels(labels),
	})
}

// TaskFinished records one completed task
func (c *Collector) TaskFinished(experiment, model string, repetitions int, elapsed time.Duration) {
	labels := map[string]string{"experiment": experiment, "model": model}
	c.Record(MetricTaskDuration, float64(elapsed)/float64(time.Millisecond), labels)
	c.Record(MetricRepetitions, float64(repetitions), labels)
}

// Series returns a copy of the points of a metric, optionally restricted to
// points carrying every given label
func (c *Collector) Series(name string, labels map[string]string) []Point {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []Point
	for _, p := range c.series[name] {
		if !matches(p.Labels, labels) {
			continue
		}
		p.Labels = copyLabels(p.Labels)
		out = append(out, p)
	}
	return out
}

// Names returns the recorded metric names, sorted
func (c *Collector) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.series))
	for name := range c.series {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Progress summarizes the run so far
func (c *Collector) Progress() models.Progress {
	c.mu.RLock()
	defer c.mu.RUnlock()

	durations := values(c.series[MetricTaskDuration])
	reps := 0
	for _, p := range c.series[MetricRepetitions] {
		reps += int(p.Value)
	}

	p := models.Progress{
		TasksTotal:  c.total,
		TasksDone:   len(durations),
		Repetitions: reps,
		TaskMeanMs:  utils.Mean(durations),
		TaskP95Ms:   utils.Percentile(durations, 95),
	}
	if !c.startTime.IsZero() {
		end := c.endTime
		if end.IsZero() {
			end = time.Now()
		}
		elapsed := end.Sub(c.startTime)
		p.ElapsedMs = elapsed.Milliseconds()
		if elapsed > 0 {
			p.RepetitionsPerSec = float64(reps) / elapsed.Seconds()
		}
	}
	return p
}

func values(points []Point) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Value
	}
	return out
}

func matches(have, want map[string]string) bool {
	for k, v := range want {
		if have[k] != v {
			return false
		}
	}
	return true
}

func copyLabels(labels map[string]string) map[string]string {
	if labels == nil {
		return nil
	}
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}
