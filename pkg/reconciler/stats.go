package reconciler

import (
	"math"
	"time"

	"github.com/cuemby/streakline/pkg/types"
)

// Stats are the derived fields the reconciler owns on a participant
type Stats struct {
	TotalCompletions     int
	CurrentStreak        int
	LongestStreak        int
	CompletionPercentage float64
}

// DailyGoal is the number of completions that make a day count toward a
// streak: the challenge's daily target, or fewer if fewer activities were
// selected.
func DailyGoal(challenge *types.Challenge, p *types.Participant) int {
	goal := challenge.DailyTarget()
	if n := len(p.SelectedActivityIDs); n > 0 && n < goal {
		goal = n
	}
	return goal
}

// ComputeStats derives a participant's stats from its completions as of today.
// Completions for unselected activities, for days in the future, or for days
// outside the challenge window are ignored.
func ComputeStats(challenge *types.Challenge, p *types.Participant, completions []*types.Completion, today types.Day, loc *time.Location) Stats {
	first := windowStart(challenge, p, loc)
	last := today
	if end, ok := challenge.EndDate(); ok && end.Before(last) {
		last = end
	}

	perDay := make(map[types.Day]int)
	var stats Stats
	for _, c := range completions {
		if !p.HasActivity(c.ActivityID) || c.Day.Before(first) || c.Day.After(last) {
			continue
		}
		perDay[c.Day]++
		stats.TotalCompletions++
	}

	goal := DailyGoal(challenge, p)
	complete := func(d types.Day) bool { return perDay[d] >= goal }

	// Current streak counts back from today, or from yesterday while today is
	// still in progress
	day := last
	if !complete(day) {
		day = day.AddDays(-1)
	}
	for !day.Before(first) && complete(day) {
		stats.CurrentStreak++
		day = day.AddDays(-1)
	}

	run, completeDays := 0, 0
	for d := first; !d.After(last); d = d.AddDays(1) {
		if complete(d) {
			run++
			completeDays++
			stats.LongestStreak = max(stats.LongestStreak, run)
			continue
		}
		run = 0
	}

	elapsed := types.DaysBetween(first, last) + 1
	if challenge.DurationDays > 0 && elapsed > challenge.DurationDays {
		elapsed = challenge.DurationDays
	}
	if elapsed > 0 {
		stats.CompletionPercentage = math.Min(100, math.Round(float64(completeDays)*100/float64(elapsed)))
	}
	return stats
}

// windowStart is the challenge start date, or the day the participant joined
// for challenges that start on join
func windowStart(challenge *types.Challenge, p *types.Participant, loc *time.Location) types.Day {
	if challenge.StartDate != nil && !challenge.StartDate.IsZero() {
		return *challenge.StartDate
	}
	return types.DayOf(p.JoinedAt, loc)
}

func (s Stats) applied(p *types.Participant) bool {
	return p.TotalCompletions == s.TotalCompletions &&
		p.CurrentStreak == s.CurrentStreak &&
		p.LongestStreak == s.LongestStreak &&
		p.CompletionPercentage == s.CompletionPercentage
}

func (s Stats) apply(p *types.Participant) {
	p.TotalCompletions = s.TotalCompletions
	p.CurrentStreak = s.CurrentStreak
	p.LongestStreak = s.LongestStreak
	p.CompletionPercentage = s.CompletionPercentage
}
