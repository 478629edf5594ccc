package metrics

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/edr-tools/edrload/internal/runner"
)

// ClassLabel returns a human-readable description for an outcome class:
// the standard reason phrase for numeric statuses, or a fixed label for
// transport-level failure classes.
func ClassLabel(class string) string {
	switch class {
	case runner.ClassTransportError:
		return "Transport Error"
	case runner.ClassDrainTimeout:
		return "Drain Timeout"
	}
	if code, err := strconv.Atoi(class); err == nil {
		if text := http.StatusText(code); text != "" {
			return text
		}
	}
	return "Unknown Status"
}

// SortBuckets orders rows by descending count, then by class for stability.
func SortBuckets(rows []BucketStats) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			return rows[i].Class < rows[j].Class
		}
		return rows[i].Count > rows[j].Count
	})
}
