package validation

import (
	"fmt"
	"regexp"
)

// SegmentNameRegex is the only shape of segment file name the gateway will
// ever produce. Anything else is rejected before touching the filesystem.
var SegmentNameRegex = regexp.MustCompile(`^segment_\d{3}\.ts$`)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]{0,127}$`)

// ValidateSegmentName rejects any segment name that does not match the
// gateway's own output pattern. This is the path-traversal gate: names like
// "../" or absolute paths can never pass.
func ValidateSegmentName(name string) error {
	if !SegmentNameRegex.MatchString(name) {
		return fmt.Errorf("invalid segment name")
	}
	return nil
}

// ValidateCameraID checks a caller-supplied camera identifier.
func ValidateCameraID(id string) error {
	if !idRegex.MatchString(id) {
		return fmt.Errorf("invalid camera id")
	}
	return nil
}

// ValidateSessionID checks a caller-supplied session identifier.
func ValidateSessionID(id string) error {
	if !idRegex.MatchString(id) {
		return fmt.Errorf("invalid session id")
	}
	return nil
}
