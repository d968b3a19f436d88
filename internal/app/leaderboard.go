package app

import (
	"sort"

	"live-quiz-service/internal/domain"
)

// DefaultLeaderboardLimit caps the live leaderboard.
const DefaultLeaderboardLimit = 20

// BuildLeaderboard ranks results by total points, then score, then who got there
// first, then user id. A non-positive limit means DefaultLeaderboardLimit.
func BuildLeaderboard(results []domain.ParticipantResult, limit int) []domain.LeaderboardEntry {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	sorted := make([]domain.ParticipantResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.TotalPoints != b.TotalPoints {
			return a.TotalPoints > b.TotalPoints
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.Before(b.UpdatedAt)
		}
		return a.UserID < b.UserID
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}

	entries := make([]domain.LeaderboardEntry, len(sorted))
	for i, r := range sorted {
		entries[i] = domain.LeaderboardEntry{
			Rank:           i + 1,
			UserID:         r.UserID,
			Name:           r.Name,
			RollNo:         r.RollNo,
			TotalPoints:    r.TotalPoints,
			Score:          r.Score,
			TotalQuestions: r.TotalQuestions,
			Percentage:     r.Percentage,
			LastAnsweredAt: r.UpdatedAt,
		}
	}
	return entries
}

// RankOf is one plus the number of results with strictly more points than userID,
// so tied users share a rank. It returns 0 when userID has no result.
func RankOf(results []domain.ParticipantResult, userID string) int {
	var own *domain.ParticipantResult
	for i := range results {
		if results[i].UserID == userID {
			own = &results[i]
			break
		}
	}
	if own == nil {
		return 0
	}
	rank := 1
	for _, r := range results {
		if r.TotalPoints > own.TotalPoints {
			rank++
		}
	}
	return rank
}

func filterRound(results []domain.ParticipantResult, round int) []domain.ParticipantResult {
	out := make([]domain.ParticipantResult, 0, len(results))
	for _, r := range results {
		if r.Round == round {
			out = append(out, r)
		}
	}
	return out
}
