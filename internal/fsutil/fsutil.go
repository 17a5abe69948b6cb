// Package fsutil holds the small file and formatting helpers shared by the engine,
// the stage runner and the worker.
package fsutil

import (
	"fmt"
	"os"
	"time"
)

// DirPermissions is used for every directory the service creates.
const DirPermissions = 0o750

const (
	byteUnit = 1
	kilobyte = byteUnit * 1024
	megabyte = kilobyte * 1024
	gigabyte = megabyte * 1024
)

const (
	formatSeconds = "%.1fs"
	formatMinutes = "%dm %.1fs"
	formatHours   = "%dh %dm"
	formatGB      = "%.1f GB"
	formatMB      = "%.1f MB"
	formatKB      = "%.1f KB"
	formatBytes   = "%d B"

	errFmtFailedToCreateDir = "failed to create directory %s: %w"
)

// EnsureDir creates path and its parents when missing.
func EnsureDir(path string) error {
	err := os.MkdirAll(path, DirPermissions)
	if err != nil {
		return fmt.Errorf(errFmtFailedToCreateDir, path, err)
	}

	return nil
}

// FormatDuration renders d as "45.2s", "5m 30.5s" or "1h 15m".
func FormatDuration(d time.Duration) string {
	seconds := d.Seconds()

	switch {
	case d < time.Minute:
		return fmt.Sprintf(formatSeconds, seconds)
	case d < time.Hour:
		minutes := int(d / time.Minute)

		return fmt.Sprintf(formatMinutes, minutes, seconds-float64(minutes)*time.Minute.Seconds())
	default:
		hours := int(d / time.Hour)
		minutes := int((d % time.Hour) / time.Minute)

		return fmt.Sprintf(formatHours, hours, minutes)
	}
}

// FormatFileSize renders a byte count as "1.2 GB", "500.5 MB" and so on.
func FormatFileSize(bytes int64) string {
	switch {
	case bytes >= gigabyte:
		return fmt.Sprintf(formatGB, float64(bytes)/gigabyte)
	case bytes >= megabyte:
		return fmt.Sprintf(formatMB, float64(bytes)/megabyte)
	case bytes >= kilobyte:
		return fmt.Sprintf(formatKB, float64(bytes)/kilobyte)
	default:
		return fmt.Sprintf(formatBytes, bytes)
	}
}
