package restree

import (
	"regexp"
	"strings"

	"github.com/c360/datahub/errors"
)

// segmentPattern restricts a path segment's characters, grounded on the
// original dataHub's resTree_IsNameMalformed byte-class check.
var segmentPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ObservationsRoot is the name of the auto-created namespace under root that
// holds all Observations.
const ObservationsRoot = "obs"

// splitPath splits a path into its non-empty segments. A leading "/" is
// permitted and stripped; any other empty segment is malformed.
func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	trimmed := strings.TrimPrefix(path, "/")
	if trimmed == "" {
		return nil, nil
	}
	raw := strings.Split(trimmed, "/")
	segments := make([]string, 0, len(raw))
	for _, seg := range raw {
		if seg == "" {
			return nil, errors.Newf(errors.KindBadParameter, "path %q contains an empty segment", path)
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

// isSegmentMalformed reports whether a single path segment violates the
// identifier grammar or the configured name-length bound.
func isSegmentMalformed(segment string, maxNameBytes int) bool {
	if segment == "" || len(segment) > maxNameBytes {
		return true
	}
	return !segmentPattern.MatchString(segment)
}

// isPathMalformed reports whether path violates MAX_PATH_BYTES or contains
// a malformed segment.
func isPathMalformed(path string, maxNameBytes, maxPathBytes int) bool {
	if len(path) > maxPathBytes {
		return true
	}
	segments, err := splitPath(path)
	if err != nil {
		return true
	}
	for _, seg := range segments {
		if isSegmentMalformed(seg, maxNameBytes) {
			return true
		}
	}
	return false
}
