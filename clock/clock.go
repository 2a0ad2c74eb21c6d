package clock

import (
	"context"
	"time"
)

// Clock is the only timing primitive used by the sequencer. Every wait in a
// run goes through Sleep so a single Speed setting fast-forwards a whole
// sequence.
type Clock interface {
	Now() time.Time
	// Scale converts a nominal duration into the wall-clock time Sleep will
	// actually wait.
	Scale(d time.Duration) time.Duration
	// Sleep waits for d (scaled) or until ctx is done. It returns ctx.Err()
	// when the wait was abandoned.
	Sleep(ctx context.Context, d time.Duration) error
}

type Config struct {
	// Speed divides every duration. 1 plays in real time, 10 plays ten
	// times faster. Values <= 0 are treated as 1.
	Speed float64
}

var DefaultConfig = Config{
	Speed: 1,
}

type clock struct {
	speed float64
}

func (c clock) Now() time.Time {
	return time.Now()
}

func (c clock) Scale(d time.Duration) time.Duration {
	if c.speed == 1 {
		return d
	}
	return time.Duration(float64(d) / c.speed)
}

func (c clock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d = c.Scale(d)
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func Make(config ...Config) Clock {
	cfg := DefaultConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Speed <= 0 {
		cfg.Speed = DefaultConfig.Speed
	}
	return clock{speed: cfg.Speed}
}
