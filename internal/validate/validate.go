// Package validate implements the heuristic auto-check that decides whether
// a finished take is good enough to accept without human review.
package validate

import (
	"fmt"
	"time"

	"github.com/Sandy7272/capture-3d/internal/session"
)

// MinPlausibleBytesPerSec is the bitrate floor below which a take is flagged
// as low-signal (black/frozen frames or an encoder failure). Well under any
// real camera encode; a healthy 1080p take runs in the MB/s range.
const MinPlausibleBytesPerSec = 100 * 1024

// Report is the outcome of validating one take. Errors reject the take;
// warnings are surfaced but do not block acceptance.
type Report struct {
	// OK is true when no errors were found
	OK bool
	// Errors lists hard failures that force a retake
	Errors []string
	// Warnings lists suspicious-but-tolerated findings
	Warnings []string
}

// Check validates a finished take against the minimum duration requirement.
//
// The function is pure: identical (bytes, duration, minDuration) input always
// yields an identical report, and the session is never mutated here. Only
// the flow controller applies verdicts.
//
// Checks, in order:
//  1. Empty media data (error)
//  2. Measured duration below the required minimum (error, the hard gate)
//  3. Implausibly low bytes/sec for the measured duration (warning only,
//     since false positives cost the operator a full retake)
func Check(take session.Take, minDuration time.Duration) Report {
	var report Report

	if len(take.Data) == 0 {
		report.Errors = append(report.Errors, "recording contains no data")
	}

	if take.Duration < minDuration {
		report.Errors = append(report.Errors, fmt.Sprintf(
			"video too short: %.1fs recorded, %.0fs required",
			take.Duration.Seconds(), minDuration.Seconds(),
		))
	}

	if len(take.Data) > 0 && take.Duration > 0 {
		bytesPerSec := float64(len(take.Data)) / take.Duration.Seconds()
		if bytesPerSec < MinPlausibleBytesPerSec {
			report.Warnings = append(report.Warnings, fmt.Sprintf(
				"low data rate (%.0f KiB/s): the video may be dark or frozen",
				bytesPerSec/1024,
			))
		}
	}

	report.OK = len(report.Errors) == 0
	return report
}
