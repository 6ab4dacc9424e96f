// Package statsview parses the Prometheus text exposition served by the
// runtime's metrics endpoint back into a small struct the CLI can render
// as table/json/yaml or hand to the stats TUI. It is a leaf package so
// both cli/cmd and cli/tui can depend on it without a cycle.
package statsview

import (
	"strconv"
	"strings"
)

// Summary mirrors metrics.Summary for CLI display purposes.
type Summary struct {
	Mean float64 `json:"mean"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	P95  float64 `json:"p95"`
}

// StatsView is the rendered snapshot of one /metrics scrape.
type StatsView struct {
	JobsByState   map[string]int64 `json:"jobs_by_state"`
	CacheHitRate  float64          `json:"cache_hit_rate"`
	ActiveUsers   int64            `json:"active_users"`
	JobDuration   Summary          `json:"job_duration_ms"`
	QueueWait     Summary          `json:"queue_wait_ms"`
}

// Parse reads Prometheus text exposition in the shape produced by
// metrics.Exporter.Export and extracts the fields StatsView needs.
// Unrecognized metric names are ignored rather than rejected, so the CLI
// keeps working if the runtime adds metrics it doesn't know about yet.
func Parse(text string) StatsView {
	view := StatsView{JobsByState: make(map[string]int64)}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		name, labels, value, ok := parseLine(line)
		if !ok {
			continue
		}

		switch name {
		case "queue_jobs_total":
			if state, ok := labels["state"]; ok {
				view.JobsByState[state] = int64(value)
			}
		case "queue_cache_hit_rate":
			view.CacheHitRate = value
		case "queue_active_users":
			view.ActiveUsers = int64(value)
		case "queue_job_duration_milliseconds":
			view.JobDuration = withQuantile(view.JobDuration, labels, value)
		case "queue_job_duration_milliseconds_sum":
			view.JobDuration.Mean = value
		case "queue_job_duration_milliseconds_min":
			view.JobDuration.Min = value
		case "queue_job_duration_milliseconds_max":
			view.JobDuration.Max = value
		case "queue_wait_time_milliseconds":
			view.QueueWait = withQuantile(view.QueueWait, labels, value)
		case "queue_wait_time_milliseconds_sum":
			view.QueueWait.Mean = value
		case "queue_wait_time_milliseconds_min":
			view.QueueWait.Min = value
		case "queue_wait_time_milliseconds_max":
			view.QueueWait.Max = value
		}
	}

	return view
}

func withQuantile(s Summary, labels map[string]string, value float64) Summary {
	if labels["quantile"] == "0.95" {
		s.P95 = value
	}
	return s
}

// parseLine splits a single Prometheus sample line into its metric name,
// optional label set, and float value.
func parseLine(line string) (name string, labels map[string]string, value float64, ok bool) {
	sp := strings.LastIndex(line, " ")
	if sp < 0 {
		return "", nil, 0, false
	}
	head, valStr := line[:sp], line[sp+1:]

	v, err := strconv.ParseFloat(valStr, 64)
	if err != nil {
		return "", nil, 0, false
	}

	brace := strings.IndexByte(head, '{')
	if brace < 0 {
		return head, nil, v, true
	}

	name = head[:brace]
	labelStr := strings.TrimSuffix(head[brace+1:], "}")
	labels = make(map[string]string)
	for _, pair := range strings.Split(labelStr, ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			continue
		}
		labels[kv[0]] = strings.Trim(kv[1], `"`)
	}
	return name, labels, v, true
}
