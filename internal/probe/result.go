package probe

import (
	"strings"
	"time"

	"github.com/randomizedcoder/go-rtsp-exporter/internal/process"
)

// ErrorKind classifies why a probe failed. The values are part of the
// metrics contract: they appear as the `error` label on probe_errors_total.
type ErrorKind string

const (
	KindTimeout      ErrorKind = "timeout"
	KindProcessError ErrorKind = "process_error"
	KindParseError   ErrorKind = "parse_error"
	KindUnreachable  ErrorKind = "unreachable"
	KindUnknown      ErrorKind = "unknown"
)

// Failure describes a failed probe.
type Failure struct {
	Kind    ErrorKind
	Reason  string // compact stderr-derived key (404, conn_refused, dns, ...)
	Message string // short human-readable detail for logs
}

// Result is the outcome of one probe cycle for one stream. Exactly one of
// Description and Failure is set.
type Result struct {
	Description *StreamDescription
	Failure     *Failure
	ExitCode    int
	Elapsed     time.Duration
}

// OK reports whether the probe succeeded.
func (r Result) OK() bool {
	return r.Failure == nil
}

// classifyStderr maps ffprobe stderr to a compact reason key and an
// ErrorKind. Best effort: ffmpeg error text is not a stable interface, so
// unmatched output falls through to unknown/other.
func classifyStderr(stderr string) (ErrorKind, string) {
	s := strings.ToLower(stderr)

	switch {
	case strings.Contains(s, "connection refused") || strings.Contains(s, "refused"):
		return KindUnreachable, "conn_refused"
	case strings.Contains(s, "no route to host") || strings.Contains(s, "network is unreachable"):
		return KindUnreachable, "unreachable"
	case strings.Contains(s, "name or service not known") ||
		strings.Contains(s, "no such host") ||
		strings.Contains(s, "not known"):
		return KindUnreachable, "dns"
	case strings.Contains(s, "option not found") || strings.Contains(s, "unrecognized option"):
		// Checked before the timeout patterns: the offending option is
		// usually rw_timeout, and its name would match them.
		return KindProcessError, "bad_option"
	case strings.Contains(s, "timed out") || strings.Contains(s, "timeout"):
		return KindTimeout, "timeout"
	case strings.Contains(s, "404"):
		return KindProcessError, "404"
	case strings.Contains(s, "401"):
		return KindProcessError, "401"
	case strings.Contains(s, "454") && strings.Contains(s, "session not found"):
		return KindProcessError, "rtsp_454"
	default:
		return KindUnknown, "other"
	}
}

// shortMessage compacts stderr into a single short log line.
func shortMessage(stderr []byte) string {
	s := strings.TrimSpace(string(stderr))
	if s == "" {
		return "unknown"
	}
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > 120 {
		s = s[:120]
	}
	return s
}

// failureFromRun classifies a process-level failure (timeout or spawn error).
func failureFromRun(res process.Result) *Failure {
	switch res.Status {
	case process.StatusTimedOut:
		return &Failure{
			Kind:    KindTimeout,
			Reason:  "proc_timeout",
			Message: "ffprobe did not complete within the probe timeout",
		}
	case process.StatusErrored:
		return &Failure{
			Kind:    KindProcessError,
			Reason:  "spawn_failed",
			Message: res.Err.Error(),
		}
	default:
		return nil
	}
}
