package utils

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var (
	emailRegex   = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	controlChars = regexp.MustCompile(`[\x00-\x1f\x7f]`)
	unsafeName   = regexp.MustCompile(`[^a-zA-Z0-9._\-]+`)
)

// ValidateEmail validates an email address
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

// ValidateRequired returns an error naming field when value is blank
func ValidateRequired(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", field)
	}
	return nil
}

// ValidateDateRange checks start and end are set, end is not before start,
// and start is not before the day containing today.
func ValidateDateRange(start, end, today time.Time) error {
	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("start and end dates are required")
	}
	start, end = TruncateDay(start), TruncateDay(end)
	if end.Before(start) {
		return fmt.Errorf("end date %s is before start date %s", end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	if start.Before(TruncateDay(today)) {
		return fmt.Errorf("start date %s is in the past", start.Format(time.DateOnly))
	}
	return nil
}

// InclusiveDays returns the number of calendar days from start to end, both included
func InclusiveDays(start, end time.Time) int {
	return int(TruncateDay(end).Sub(TruncateDay(start)).Hours()/24) + 1
}

// TruncateDay drops the time of day, keeping the date in t's location
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ValidateFileExtension checks name's extension against an allow-list of lower-case ".ext" keys
func ValidateFileExtension(name string, allowed map[string]bool) error {
	ext := strings.ToLower(filepath.Ext(name))
	if !allowed[ext] {
		return fmt.Errorf("file type %q is not allowed", ext)
	}
	return nil
}

// SanitizeString removes control characters
func SanitizeString(s string) string {
	return controlChars.ReplaceAllString(s, "")
}

// SanitizeFileName keeps the base name and replaces unsafe characters with '_'
func SanitizeFileName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == ".." {
		return "file"
	}
	return unsafeName.ReplaceAllString(base, "_")
}
