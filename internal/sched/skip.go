// internal/sched/skip.go

package sched

import (
	"fmt"
	"strings"
	"time"
)

// FrameSkipPolicy decides how many frames to drop when rendering falls behind vsync.
type FrameSkipPolicy int32

const (
	SkipNever    FrameSkipPolicy = iota // always render, latency may grow
	SkipCatchUp                         // drop frames only when more than one frame behind
	SkipToLatest                        // drop everything but the latest frame
	SkipLimited                         // like SkipToLatest, capped at the max skip
)

// DefaultMaxFrameSkip caps SkipLimited when nothing is configured.
const DefaultMaxFrameSkip = 3

func (p FrameSkipPolicy) String() string {
	switch p {
	case SkipNever:
		return "never"
	case SkipCatchUp:
		return "catch_up"
	case SkipToLatest:
		return "skip_to_latest"
	case SkipLimited:
		return "limited"
	default:
		return "unknown"
	}
}

// AllowsSkipping reports whether the policy ever drops frames.
func (p FrameSkipPolicy) AllowsSkipping() bool {
	return p != SkipNever
}

// FramesToSkip returns how many frames to drop after elapsed time without
// a frame, given the per-frame budget. Zero means render now.
func (p FrameSkipPolicy) FramesToSkip(elapsed, budget time.Duration, maxSkip int) int {
	if budget <= 0 || elapsed <= 0 {
		return 0
	}
	behind := int(elapsed / budget)
	missed := max(behind-1, 0)

	switch p {
	case SkipCatchUp:
		if behind > 1 {
			return missed
		}
		return 0
	case SkipToLatest:
		return missed
	case SkipLimited:
		return min(missed, max(maxSkip, 0))
	default:
		return 0
	}
}

// ParseSkipPolicy resolves a config value. Empty selects SkipCatchUp.
func ParseSkipPolicy(name string) (FrameSkipPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "catch_up":
		return SkipCatchUp, nil
	case "never":
		return SkipNever, nil
	case "skip_to_latest":
		return SkipToLatest, nil
	case "limited":
		return SkipLimited, nil
	default:
		return SkipNever, fmt.Errorf("unknown skip policy %q", name)
	}
}
