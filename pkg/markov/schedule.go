package markov

import (
	"fmt"
	"math"
)

// Plan returns the ascending chunk sizes used for successive training passes.
// It starts at initChunkSize and multiplies by growth (rounding down) until
// the next size would reach historyLen / divisor. When rounding down would not
// grow the size, it grows by one instead.
//
// The result is empty when initChunkSize already reaches the ceiling.
func Plan(historyLen, initChunkSize int, growth float64, divisor int) ([]int, error) {
	switch {
	case historyLen < 0:
		return nil, fmt.Errorf("%w: negative history length %d", ErrInvalidSchedule, historyLen)
	case initChunkSize < 1:
		return nil, fmt.Errorf("%w: initial chunk size must be at least 1, got %d", ErrInvalidSchedule, initChunkSize)
	case math.IsNaN(growth) || growth <= 1:
		return nil, fmt.Errorf("%w: growth factor must be greater than 1, got %v", ErrInvalidSchedule, growth)
	case divisor < 1:
		return nil, fmt.Errorf("%w: divisor must be at least 1, got %d", ErrInvalidSchedule, divisor)
	}

	ceiling := float64(historyLen) / float64(divisor)
	var plan []int
	for size := initChunkSize; float64(size) < ceiling; {
		plan = append(plan, size)
		next := math.Floor(float64(size) * growth)
		if next >= ceiling {
			break
		}
		if int(next) <= size {
			next = float64(size + 1)
		}
		size = int(next)
	}
	return plan, nil
}
