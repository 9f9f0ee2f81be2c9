package live

import (
	"context"
	"time"
	"unicode/utf8"
)

// Reveal emits growing prefixes of text, one rune per interval. It stops
// early with ctx.Err() when ctx is cancelled.
func Reveal(ctx context.Context, text string, interval time.Duration, emit func(prefix string) error) error {
	if text == "" {
		return nil
	}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for end := 0; end < len(text); {
		_, size := utf8.DecodeRuneInString(text[end:])
		end += size

		if err := emit(text[:end]); err != nil {
			return err
		}
		if end == len(text) {
			break
		}

		if timer == nil {
			timer = time.NewTimer(interval)
		} else {
			timer.Reset(interval)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}

// CountUp returns the intermediate scores shown while the display climbs
// from one score to the next. The last value is always to; it is empty when
// to <= from.
func CountUp(from, to int) []int {
	diff := to - from
	if diff <= 0 {
		return nil
	}
	steps := min(max(diff/15, 8), 30)

	out := make([]int, 0, steps)
	prev := from
	for i := 1; i <= steps; i++ {
		v := from + diff*i/steps
		if v == prev {
			continue
		}
		out = append(out, v)
		prev = v
	}
	return out
}

// CountUpDuration is the total count-up animation time for a score increase.
func CountUpDuration(from, to int) time.Duration {
	diff := to - from
	if diff <= 0 {
		return 0
	}
	ms := min(max(diff*2, 300), 1500)
	return time.Duration(ms) * time.Millisecond
}
