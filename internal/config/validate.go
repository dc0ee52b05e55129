package config

import (
	"errors"
	"fmt"
	"net/url"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors and inconsistencies.
// Returns nil if valid, or an error describing every problem found.
func Validate(cfg *Config) error {
	var errs []error

	// At least one target is required (unless -print-cmd)
	if len(cfg.Targets) == 0 && !cfg.PrintCmd {
		errs = append(errs, ValidationError{
			Field:   "streams",
			Message: "at least one RTSP stream URL is required",
		})
	}

	for _, t := range cfg.Targets {
		if err := validateStreamURL(t.URL); err != nil {
			errs = append(errs, ValidationError{
				Field:   "streams",
				Message: fmt.Sprintf("%q: %v", t.URL, err),
			})
		}
		if t.Interval < 0 {
			errs = append(errs, ValidationError{
				Field:   "targets",
				Message: fmt.Sprintf("%q: interval must not be negative", t.Label()),
			})
		}
	}

	if cfg.ProbeInterval <= 0 {
		errs = append(errs, ValidationError{
			Field:   "interval",
			Message: "must be positive",
		})
	}

	if cfg.ProbeTimeout <= 0 {
		errs = append(errs, ValidationError{
			Field:   "timeout",
			Message: "must be positive",
		})
	}

	validTransports := map[string]bool{"tcp": true, "udp": true}
	if !validTransports[cfg.RTSPTransport] {
		errs = append(errs, ValidationError{
			Field:   "transport",
			Message: fmt.Sprintf("must be 'tcp' or 'udp' (got %q)", cfg.RTSPTransport),
		})
	}

	if cfg.BitrateSampleSeconds < 0 {
		errs = append(errs, ValidationError{
			Field:   "sample_seconds",
			Message: "must not be negative",
		})
	}
	// Sampling windows beyond the probe interval would pile up subprocesses.
	if cfg.BitrateSampleSeconds > 0 && cfg.BitrateSampleSeconds >= cfg.ProbeInterval {
		errs = append(errs, ValidationError{
			Field:   "sample_seconds",
			Message: fmt.Sprintf("must be shorter than the probe interval (%v)", cfg.ProbeInterval),
		})
	}
	if cfg.BitrateSampleEveryN < 1 {
		errs = append(errs, ValidationError{
			Field:   "sample_every",
			Message: "must be at least 1",
		})
	}

	validMethods := map[string]bool{"auto": true, "ffmpeg_pipe": true, "ffprobe_packets": true}
	if !validMethods[cfg.BitrateMethod] {
		errs = append(errs, ValidationError{
			Field:   "sample_method",
			Message: fmt.Sprintf("must be one of: auto, ffmpeg_pipe, ffprobe_packets (got %q)", cfg.BitrateMethod),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.LogFormat] {
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf("must be 'json' or 'text' (got %q)", cfg.LogFormat),
		})
	}

	if cfg.MetricsAddr == "" {
		errs = append(errs, ValidationError{
			Field:   "metrics",
			Message: "must not be empty",
		})
	}

	if cfg.ShutdownGrace < 0 {
		errs = append(errs, ValidationError{
			Field:   "grace",
			Message: "must not be negative",
		})
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// validateStreamURL checks that the URL is a well-formed RTSP address.
func validateStreamURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("URL must not be empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if u.Scheme != "rtsp" && u.Scheme != "rtsps" {
		return fmt.Errorf("URL scheme must be rtsp or rtsps (got %q)", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("URL must have a host")
	}

	return nil
}
