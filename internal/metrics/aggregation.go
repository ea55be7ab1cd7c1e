package metrics

import (
	"sort"
	"time"
)

// Summary aggregates a set of metrics.
type Summary struct {
	Count        int           `json:"count" yaml:"count"`
	SuccessCount int           `json:"success_count" yaml:"success_count"`
	ErrorCount   int           `json:"error_count" yaml:"error_count"`
	TotalTokens  int           `json:"total_tokens" yaml:"total_tokens"`
	TotalTime    time.Duration `json:"total_time" yaml:"total_time"`

	AvgTokens      float64 `json:"avg_tokens" yaml:"avg_tokens"`
	AvgTimeSeconds float64 `json:"avg_time_seconds" yaml:"avg_time_seconds"`

	// Latency percentiles (seconds) over successful sections
	LatencyP50 float64 `json:"latency_p50" yaml:"latency_p50"`
	LatencyP95 float64 `json:"latency_p95" yaml:"latency_p95"`
	LatencyMax float64 `json:"latency_max" yaml:"latency_max"`

	// Failures by error class
	Errors map[string]int `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Summarize computes a Summary over ms.
func Summarize(ms []Metric) Summary {
	s := Summary{Count: len(ms)}
	if len(ms) == 0 {
		return s
	}

	var latencies []float64
	for _, m := range ms {
		s.TotalTokens += m.TotalTokens
		s.TotalTime += time.Duration(m.TotalSeconds * float64(time.Second))
		if m.Success {
			s.SuccessCount++
			if m.TotalSeconds > 0 {
				latencies = append(latencies, m.TotalSeconds)
			}
			continue
		}
		s.ErrorCount++
		if s.Errors == nil {
			s.Errors = make(map[string]int)
		}
		class := m.ErrorClass
		if class == "" {
			class = "unknown"
		}
		s.Errors[class]++
	}

	count := float64(s.Count)
	s.AvgTokens = float64(s.TotalTokens) / count
	s.AvgTimeSeconds = s.TotalTime.Seconds() / count

	if len(latencies) > 0 {
		sort.Float64s(latencies)
		s.LatencyP50 = percentile(latencies, 50)
		s.LatencyP95 = percentile(latencies, 95)
		s.LatencyMax = latencies[len(latencies)-1]
	}
	return s
}

// ByChapter groups ms by chapter id and summarizes each group.
func ByChapter(ms []Metric) map[string]Summary {
	groups := make(map[string][]Metric)
	for _, m := range ms {
		groups[m.ChapterID] = append(groups[m.ChapterID], m)
	}
	out := make(map[string]Summary, len(groups))
	for id, g := range groups {
		out[id] = Summarize(g)
	}
	return out
}

// percentile calculates the p-th percentile from a sorted slice of values.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	n := float64(len(sorted))
	idx := (p / 100.0) * (n - 1)

	lower := int(idx)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	weight := idx - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
