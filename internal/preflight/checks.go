// Package preflight provides startup validation checks.
package preflight

import (
	"fmt"
	"os/exec"
	"strings"
	"syscall"
)

// Check represents the result of a single preflight check.
type Check struct {
	Name     string // Name of the check
	Required int    // Required value (if applicable)
	Actual   int    // Actual value found
	Passed   bool   // Whether the check passed
	Warning  bool   // True if it's a warning (non-fatal)
	Message  string // Additional context
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks []Check
	Passed bool
}

// String returns a human-readable summary of the check.
func (c Check) String() string {
	status := "✓"
	if !c.Passed {
		status = "✗"
	} else if c.Warning {
		status = "⚠"
	}

	if c.Required > 0 {
		return fmt.Sprintf("  %s %s: %d available (need %d)", status, c.Name, c.Actual, c.Required)
	}
	return fmt.Sprintf("  %s %s: %s", status, c.Name, c.Message)
}

// RunAll executes all preflight checks. ffmpegPath is only checked when
// bitrate sampling can invoke it; pass "" to skip.
func RunAll(targets int, ffprobePath, ffmpegPath string) *Result {
	result := &Result{
		Checks: make([]Check, 0, 3),
		Passed: true,
	}

	fdCheck := checkFileDescriptors(targets)
	result.Checks = append(result.Checks, fdCheck)
	if !fdCheck.Passed {
		result.Passed = false
	}

	probeCheck := checkTool("ffprobe", ffprobePath)
	result.Checks = append(result.Checks, probeCheck)
	if !probeCheck.Passed {
		result.Passed = false
	}

	if ffmpegPath != "" {
		ffmpegCheck := checkTool("ffmpeg", ffmpegPath)
		result.Checks = append(result.Checks, ffmpegCheck)
		if !ffmpegCheck.Passed {
			result.Passed = false
		}
	}

	return result
}

// checkFileDescriptors verifies sufficient file descriptors are available.
// Each concurrent probe holds a handful of FDs for pipes and the RTSP
// socket, plus the metrics listener and logging.
func checkFileDescriptors(targets int) Check {
	var limit syscall.Rlimit
	syscall.Getrlimit(syscall.RLIMIT_NOFILE, &limit)

	required := targets*10 + 50
	actual := int(limit.Cur)

	return Check{
		Name:     "file_descriptors",
		Required: required,
		Actual:   actual,
		Passed:   actual >= required,
		Message:  fmt.Sprintf("ulimit -n %d (need %d for %d streams)", actual, required, targets),
	}
}

// checkTool verifies an ffmpeg-family binary is present and reports its
// version.
func checkTool(name, path string) Check {
	cmd := exec.Command(path, "-version")
	output, err := cmd.Output()

	if err != nil {
		return Check{
			Name:    name,
			Passed:  false,
			Message: fmt.Sprintf("not found at %s: %v", path, err),
		}
	}

	// "ffprobe version 6.1 Copyright ..."
	version := "unknown"
	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 {
		parts := strings.Fields(lines[0])
		if len(parts) >= 3 {
			version = parts[2]
		}
	}

	return Check{
		Name:    name,
		Passed:  true,
		Message: fmt.Sprintf("found at %s (version %s)", path, version),
	}
}

// PrintResults prints the preflight check results to stdout.
func PrintResults(result *Result) {
	fmt.Println("Preflight checks:")
	for _, check := range result.Checks {
		fmt.Println(check.String())
	}
	if !result.Passed {
		fmt.Println("Preflight failed. Fix the issues above or use -skip-preflight.")
	}
}
