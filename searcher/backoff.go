package searcher

import "time"

// backoff spaces out retries of a worker that lost every race for expansion
// rights. The delay grows as d = 2d + 1ms and resets on success.
type backoff struct {
	delay  time.Duration
	jammed bool
	sleep  func(time.Duration) // nil means time.Sleep
}

// wait sleeps for the current delay and grows it. It returns false, without
// sleeping, once the delay has passed MaxBackoff.
func (b *backoff) wait() bool {
	if b.delay > MaxBackoff {
		b.jammed = true
		return false
	}
	if b.sleep != nil {
		b.sleep(b.delay)
	} else {
		time.Sleep(b.delay)
	}
	b.delay = 2*b.delay + time.Millisecond
	return true
}

func (b *backoff) reset() {
	b.delay = 0
	b.jammed = false
}
