package gamification

import (
	"time"

	"github.com/trezcool/selah/core"
)

// NextStreak computes the streak after an activity on `today` (YYYY-MM-DD, user-local):
// first activity -> 1; same day -> unchanged; next day -> +1; any gap -> 1.
func NextStreak(stats Stats, today string) (current, longest int) {
	current, longest = stats.CurrentStreak, stats.LongestStreak

	switch {
	case stats.LastActiveDate == "" || current == 0:
		current = 1
	case stats.LastActiveDate == today:
		// unchanged
	default:
		last, err1 := time.Parse(core.DateLayout, stats.LastActiveDate)
		now, err2 := time.Parse(core.DateLayout, today)
		if err1 == nil && err2 == nil && now.Sub(last) == 24*time.Hour {
			current++
		} else {
			current = 1
		}
	}

	if current > longest {
		longest = current
	}
	return current, longest
}

// StreakOn returns the streak as seen on `today`: a streak whose last activity is
// older than yesterday is broken.
func StreakOn(stats Stats, today string) int {
	if stats.LastActiveDate == "" {
		return 0
	}
	if stats.LastActiveDate == today {
		return stats.CurrentStreak
	}
	last, err1 := time.Parse(core.DateLayout, stats.LastActiveDate)
	now, err2 := time.Parse(core.DateLayout, today)
	if err1 != nil || err2 != nil || now.Sub(last) != 24*time.Hour {
		return 0
	}
	return stats.CurrentStreak
}

// Satisfied reports whether the achievement rule holds for the given stats & activity counts.
func (a Achievement) Satisfied(stats Stats, counts map[Kind]int) bool {
	switch a.RuleType {
	case RuleXP:
		return stats.XP >= a.Threshold
	case RuleStreak:
		return stats.CurrentStreak >= a.Threshold
	case RuleCount:
		return counts[a.RuleKind] >= a.Threshold
	}
	return false
}

// Evaluate returns the catalog achievements newly satisfied, skipping those already unlocked.
func Evaluate(catalog []Achievement, stats Stats, counts map[Kind]int, unlocked []UserAchievement) []Achievement {
	have := make(map[string]bool, len(unlocked))
	for _, ua := range unlocked {
		have[ua.Code] = true
	}

	var newly []Achievement
	for _, a := range catalog {
		if have[a.Code] {
			continue
		}
		if a.Satisfied(stats, counts) {
			newly = append(newly, a)
			have[a.Code] = true
		}
	}
	return newly
}
