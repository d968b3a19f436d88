// Package scoring converts answer timing into points.
package scoring

import (
	"math"
	"time"
)

const (
	// DefaultMaxTime is the answer window in seconds.
	DefaultMaxTime = 15.0
	// BasePoints is awarded for an instant correct answer.
	BasePoints = 100.0
	// DecayPerSecond is subtracted from BasePoints for each elapsed second.
	DecayPerSecond = 5.0
	// FirstCorrectBonus goes to the first participant answering a question correctly.
	FirstCorrectBonus = 50.0
)

// Points returns the score for a correct answer given after timeTaken seconds.
// Answers outside [0, maxTime] earn nothing.
func Points(timeTaken float64, isFirstCorrect bool, maxTime float64) int {
	if math.IsNaN(timeTaken) || timeTaken < 0 || timeTaken > maxTime {
		return 0
	}
	base := math.Max(0, BasePoints-DecayPerSecond*timeTaken)
	if isFirstCorrect {
		base += FirstCorrectBonus
	}
	return int(math.Round(base))
}

// Score evaluates a submission: incorrect answers always yield (false, 0).
func Score(selected, correct int, timeTaken float64, isFirstCorrect bool) (bool, int) {
	if selected != correct {
		return false, 0
	}
	return true, Points(timeTaken, isFirstCorrect, DefaultMaxTime)
}

// Percentage is score over total as a rounded percentage; zero when total is not positive.
func Percentage(score, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(score) / float64(total) * 100))
}

// MaxTimeSeconds converts a window duration into the seconds Points expects.
func MaxTimeSeconds(window time.Duration) float64 {
	return window.Seconds()
}
