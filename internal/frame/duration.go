// internal/frame/duration.go

package frame

import (
	"math"
	"time"
)

const (
	DefaultFPS = 60

	// deadlineNearRatio is the utilization at which a frame is considered close to its budget.
	deadlineNearRatio = 0.8
)

// FrameDurationFromFPS converts a target frame rate into a per-frame budget.
// Non-positive rates fall back to DefaultFPS.
func FrameDurationFromFPS(fps int) time.Duration {
	if fps <= 0 {
		fps = DefaultFPS
	}
	return time.Duration(math.Round(float64(time.Second) / float64(fps)))
}

// FPS converts a frame duration back into frames per second.
func FPS(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(time.Second) / float64(d)
}

// IsJanky reports whether a frame that took elapsed missed the target.
func IsJanky(elapsed, target time.Duration) bool {
	return elapsed > target
}

// Utilization is elapsed/target; values above 1 mean the frame overran.
func Utilization(elapsed, target time.Duration) float64 {
	if target <= 0 {
		return 0
	}
	return float64(elapsed) / float64(target)
}
