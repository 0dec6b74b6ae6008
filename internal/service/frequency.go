package service

import (
	"math"
	"sort"
	"time"
)

// FrequencyScore maps posting cadence to [0, 1]: bursty posting scores near 1,
// spaced-out posting near 0. It extracts the parseable timestamps, sorts them,
// averages the positive consecutive gaps and applies exp(-avg/tau). Fewer than
// two usable timestamps score 0. This is a spam-likelihood signal, not a
// verdict by itself.
func FrequencyScore(timestamps []string, tau float64) float64 {
	if len(timestamps) < 2 {
		return 0
	}

	times := make([]time.Time, 0, len(timestamps))
	for _, raw := range timestamps {
		t, ok := parseTimestamp(raw)
		if !ok {
			continue
		}
		times = append(times, t.UTC())
	}
	if len(times) < 2 {
		return 0
	}

	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	var sum float64
	var count int
	for i := 1; i < len(times); i++ {
		delta := times[i].Sub(times[i-1]).Seconds()
		if delta > 0 {
			sum += delta
			count++
		}
	}
	if count == 0 {
		return 0
	}

	score := math.Exp(-(sum / float64(count)) / tau)
	return math.Max(0, math.Min(1, score))
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999", // no zone: treated as UTC
	"2006-01-02T15:04:05",
}

func parseTimestamp(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
