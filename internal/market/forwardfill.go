package market

import (
	"sort"

	"github.com/camarigor/miner-profit/internal/mining"
)

// ForwardFill densifies sparse difficulty adjustment events into one point per
// calendar day of [start, end]. The value on start is the latest event on or
// before start; if no event precedes start, the earliest event is used. An
// empty event list yields an empty result.
func ForwardFill(events []DifficultyPoint, start, end string) ([]DifficultyPoint, error) {
	days, err := mining.DaysBetween(start, end)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return []DifficultyPoint{}, nil
	}

	sorted := make([]DifficultyPoint, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })

	current := sorted[0].Difficulty
	next := 0
	for next < len(sorted) && sorted[next].Date <= start {
		current = sorted[next].Difficulty
		next++
	}

	out := make([]DifficultyPoint, 0, len(days))
	for _, day := range days {
		for next < len(sorted) && sorted[next].Date <= day {
			current = sorted[next].Difficulty
			next++
		}
		out = append(out, DifficultyPoint{Date: day, Difficulty: current})
	}
	return out, nil
}
