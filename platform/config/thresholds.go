package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ThresholdFile is the optional YAML override for engine day boundaries.
// Zero values mean "keep the compiled-in default". The tag tiers and the
// priority latency tiers are configured independently on purpose.
type ThresholdFile struct {
	Tags     TagThresholdFile      `yaml:"tags"`
	Priority PriorityThresholdFile `yaml:"priority"`
}

// TagThresholdFile overrides tag rule boundaries.
type TagThresholdFile struct {
	NoResponseShortDays  int     `yaml:"noResponseShortDays"`
	NoResponseMediumDays int     `yaml:"noResponseMediumDays"`
	NoResponseLongDays   int     `yaml:"noResponseLongDays"`
	StaleCallDays        int     `yaml:"staleCallDays"`
	UpcomingScheduleDays int     `yaml:"upcomingScheduleDays"`
	TranscriptGraceDays  int     `yaml:"transcriptGraceDays"`
	NearCompletionRatio  float64 `yaml:"nearCompletionRatio"`
	NoShowWindowDays     int     `yaml:"noShowWindowDays"`
	SalesFollowUpDays    int     `yaml:"salesFollowUpDays"`
}

// PriorityThresholdFile overrides the response-latency tiers.
type PriorityThresholdFile struct {
	LatencyLowDays    int `yaml:"latencyLowDays"`
	LatencyMediumDays int `yaml:"latencyMediumDays"`
	LatencyHighDays   int `yaml:"latencyHighDays"`
}

// LoadThresholdFile reads the override file. An empty path yields an empty ThresholdFile.
func LoadThresholdFile(path string) (ThresholdFile, error) {
	var out ThresholdFile
	if strings.TrimSpace(path) == "" {
		return out, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return out, fmt.Errorf("read thresholds file: %w", err)
	}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("parse thresholds file: %w", err)
	}
	if err := out.validate(); err != nil {
		return ThresholdFile{}, err
	}
	return out, nil
}

func (f ThresholdFile) validate() error {
	t := f.Tags
	for name, v := range map[string]int{
		"noResponseShortDays":  t.NoResponseShortDays,
		"noResponseMediumDays": t.NoResponseMediumDays,
		"noResponseLongDays":   t.NoResponseLongDays,
		"staleCallDays":        t.StaleCallDays,
		"upcomingScheduleDays": t.UpcomingScheduleDays,
		"transcriptGraceDays":  t.TranscriptGraceDays,
		"noShowWindowDays":     t.NoShowWindowDays,
		"salesFollowUpDays":    t.SalesFollowUpDays,
		"latencyLowDays":       f.Priority.LatencyLowDays,
		"latencyMediumDays":    f.Priority.LatencyMediumDays,
		"latencyHighDays":      f.Priority.LatencyHighDays,
	} {
		if v < 0 {
			return fmt.Errorf("thresholds: %s must not be negative", name)
		}
	}
	if t.NearCompletionRatio < 0 || t.NearCompletionRatio > 1 {
		return fmt.Errorf("thresholds: nearCompletionRatio must be within [0,1]")
	}
	return nil
}
