package threads

import (
	"fmt"
	"strconv"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"
)

// ParseThreadString expands a pinning string such as "0-1,3,5-7" into thread
// ids in the order written. Only ids below total are kept, so a range reaching
// past the node's last thread is clipped. Empty tokens are skipped. A range
// whose start is greater than its end expands to nothing.
func ParseThreadString(s string, total int) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			start, err := parseID(lo)
			if err != nil {
				return nil, err
			}
			end, err := parseID(hi)
			if err != nil {
				return nil, err
			}
			if end >= total {
				end = total - 1
			}
			for i := start; i <= end; i++ {
				out = append(out, i)
			}
			continue
		}
		id, err := parseID(part)
		if err != nil {
			return nil, err
		}
		if id < total {
			out = append(out, id)
		}
	}
	return out, nil
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid thread id %q", s)
	}
	return id, nil
}

// CalculateFreeThreads returns the ids in [0, total) not present in assigned,
// ascending.
func CalculateFreeThreads(total int, assigned []int) []int {
	free := sets.New[int]()
	for i := 0; i < total; i++ {
		free.Insert(i)
	}
	free.Delete(assigned...)
	return sets.List(free)
}

// FormatThreads renders ids as a flat comma list; ranges are never collapsed.
func FormatThreads(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}
