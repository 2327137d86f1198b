package progress

import (
	"fmt"
	"math"
	"strconv"

	"github.com/cuemby/streakline/pkg/types"
)

// NoRank is the rank label of a participant missing from the leaderboard
const NoRank = "-"

// CatchUpKind says how a participant stands against the nearest rival
type CatchUpKind string

const (
	CatchUpNone    CatchUpKind = "none"
	CatchUpBehind  CatchUpKind = "behind"
	CatchUpTied    CatchUpKind = "tied"
	CatchUpLeading CatchUpKind = "leading"
)

// Snapshot is everything Compute reads. Leaderboard must already be sorted;
// Compute never re-sorts it.
type Snapshot struct {
	Participant    *types.Participant
	RequiredDaily  int      // 0 means types.DefaultRequiredDaily
	CompletedToday []string // activity IDs completed today
	Leaderboard    []*types.ParticipantSummary
}

// CatchUp compares a participant with the one directly ahead, or with the
// runner-up when the participant leads
type CatchUp struct {
	Kind      CatchUpKind `json:"kind"`
	RivalID   string      `json:"rival_user_id,omitempty"`
	Gap       int         `json:"gap"`       // completions between the two, never negative
	Recommend int         `json:"recommend"` // activities to do today to pass the rival
	Message   string      `json:"message,omitempty"`
}

// Standing is the dashboard view of one participant
type Standing struct {
	UserID               string   `json:"user_id"`
	CompletedToday       []string `json:"completed_today"`
	RemainingToday       []string `json:"remaining_today"`
	RequiredDaily        int      `json:"required_daily"`
	TodayPercentage      int      `json:"today_percentage"`
	Rank                 int      `json:"rank,omitempty"`
	RankLabel            string   `json:"rank_label"`
	TotalCompletions     int      `json:"total_completions"`
	CurrentStreak        int      `json:"current_streak"`
	CompletionPercentage float64  `json:"completion_percentage"`
	CatchUp              CatchUp  `json:"catch_up"`
}

// Compute derives a participant's standing from a snapshot. It has no side
// effects.
func Compute(s Snapshot) *Standing {
	p := s.Participant
	required := s.RequiredDaily
	if required <= 0 {
		required = types.DefaultRequiredDaily
	}

	done := make(map[string]bool, len(s.CompletedToday))
	for _, id := range s.CompletedToday {
		done[id] = true
	}
	standing := &Standing{
		UserID:         p.UserID,
		RequiredDaily:  required,
		RankLabel:      NoRank,
		CompletedToday: []string{},
		RemainingToday: []string{},
		CatchUp:        CatchUp{Kind: CatchUpNone},
	}
	for _, id := range p.SelectedActivityIDs {
		if done[id] {
			standing.CompletedToday = append(standing.CompletedToday, id)
		} else {
			standing.RemainingToday = append(standing.RemainingToday, id)
		}
	}
	standing.TodayPercentage = TodayPercentage(len(standing.CompletedToday), required)

	index := -1
	for i, row := range s.Leaderboard {
		if row.UserID == p.UserID {
			index = i
			break
		}
	}
	if index < 0 {
		return standing
	}

	me := s.Leaderboard[index]
	standing.Rank = index + 1
	standing.RankLabel = strconv.Itoa(standing.Rank)
	standing.TotalCompletions = me.TotalCompletions
	standing.CurrentStreak = me.CurrentStreak
	standing.CompletionPercentage = me.CompletionPercentage
	standing.CatchUp = catchUp(s.Leaderboard, index, len(standing.RemainingToday))
	return standing
}

// TodayPercentage is completed/required as a whole percentage, capped at 100
func TodayPercentage(completed, required int) int {
	if required <= 0 {
		required = types.DefaultRequiredDaily
	}
	pct := int(math.Round(float64(completed) * 100 / float64(required)))
	if pct > 100 {
		return 100
	}
	return pct
}

func catchUp(board []*types.ParticipantSummary, index, remaining int) CatchUp {
	me := board[index]

	if index == 0 {
		if len(board) < 2 {
			return CatchUp{Kind: CatchUpNone}
		}
		next := board[1]
		margin := me.TotalCompletions - next.TotalCompletions
		if margin <= 0 {
			return CatchUp{Kind: CatchUpLeading, RivalID: next.UserID, Message: "Tied for the lead"}
		}
		return CatchUp{
			Kind:    CatchUpLeading,
			RivalID: next.UserID,
			Gap:     margin,
			Message: fmt.Sprintf("%s ahead", activities(margin)),
		}
	}

	ahead := board[index-1]
	gap := ahead.TotalCompletions - me.TotalCompletions
	switch {
	case gap > 0:
		recommend := min(gap, remaining)
		c := CatchUp{Kind: CatchUpBehind, RivalID: ahead.UserID, Gap: gap, Recommend: recommend}
		if recommend > 0 {
			c.Message = fmt.Sprintf("Complete %d more %s to overtake them", recommend, noun(recommend))
		} else {
			c.Message = fmt.Sprintf("%s behind", activities(gap))
		}
		return c
	case gap == 0:
		c := CatchUp{Kind: CatchUpTied, RivalID: ahead.UserID}
		if remaining > 0 {
			c.Recommend = 1
			c.Message = "One more activity takes the lead"
		}
		return c
	default:
		// The board is out of order; say nothing rather than guess
		return CatchUp{Kind: CatchUpNone, RivalID: ahead.UserID}
	}
}

func activities(n int) string {
	return fmt.Sprintf("%d %s", n, noun(n))
}

func noun(n int) string {
	if n == 1 {
		return "activity"
	}
	return "activities"
}
