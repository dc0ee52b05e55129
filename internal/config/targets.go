package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// targetsFile is the on-disk shape of a YAML targets file:
//
//	targets:
//	  - name: lobby-cam
//	    url: rtsp://cam1:8554/live
//	    interval: 10s
//	  - url: rtsp://cam2:8554/live
type targetsFile struct {
	Targets []rawTarget `yaml:"targets"`
}

// rawTarget keeps interval as a string; yaml.v2 does not decode durations.
type rawTarget struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Interval string `yaml:"interval"`
}

// ResolveTargets builds cfg.Targets from the flat stream list and the
// optional YAML targets file. Duplicate labels are rejected so each metric
// series has exactly one writer.
func ResolveTargets(cfg *Config) error {
	targets := make([]Target, 0, len(cfg.Streams))
	for _, url := range cfg.Streams {
		targets = append(targets, Target{URL: url})
	}

	if cfg.TargetsFile != "" {
		fromFile, err := loadTargetsFile(cfg.TargetsFile)
		if err != nil {
			return err
		}
		targets = append(targets, fromFile...)
	}

	seen := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		label := t.Label()
		if _, dup := seen[label]; dup {
			return fmt.Errorf("duplicate stream target %q", label)
		}
		seen[label] = struct{}{}
	}

	cfg.Targets = targets
	return nil
}

// loadTargetsFile reads and parses a YAML targets file.
func loadTargetsFile(path string) ([]Target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read targets file: %w", err)
	}

	var tf targetsFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parse targets file %s: %w", path, err)
	}

	targets := make([]Target, 0, len(tf.Targets))
	for i, rt := range tf.Targets {
		t := Target{Name: rt.Name, URL: rt.URL}
		if rt.Interval != "" {
			d, err := time.ParseDuration(rt.Interval)
			if err != nil {
				return nil, fmt.Errorf("targets file %s: target %d: invalid interval %q: %w", path, i, rt.Interval, err)
			}
			t.Interval = d
		}
		targets = append(targets, t)
	}

	return targets, nil
}
