// internal/job/waiting.go

package job

import (
	"context"
	"time"
)

// SleepWork returns a task that waits for d, or until its frame deadline fires.
func SleepWork(d time.Duration) func(context.Context) error {
	return func(ctx context.Context) error {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			// If the time is up, we just return nil.
			return nil
		}
	}
}

// SpinWork returns a task that keeps the CPU busy for d, checking ctx between slices.
func SpinWork(d time.Duration) func(context.Context) error {
	return func(ctx context.Context) error {
		end := time.Now().Add(d)
		for time.Now().Before(end) {
			if err := ctx.Err(); err != nil {
				return err
			}
			Spin(50 * time.Microsecond)
		}
		return nil
	}
}

// Spin busy-waits for d. Used to give pipeline hooks a measurable cost.
func Spin(d time.Duration) {
	if d <= 0 {
		return
	}
	end := time.Now().Add(d)
	for time.Now().Before(end) {
	}
}
