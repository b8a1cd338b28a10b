package statsstore

import (
	"fmt"
	"strconv"
)

func parseCounts(raw map[string]string) (map[string]int64, error) {
	counts := make(map[string]int64, len(raw))
	for key, value := range raw {
		count, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid count for %s: %w", key, err)
		}
		counts[key] = count
	}
	return counts, nil
}
