package provision

import (
	"context"
	"time"
)

// Sleeper abstrae la pausa entre batches. Debe cortar si ctx se cancela.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapta una función a Sleeper.
type SleeperFunc func(ctx context.Context, d time.Duration) error

func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error { return f(ctx, d) }

type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// pickPause elige una cantidad entera de segundos, uniforme en [lower, upper].
// intn(n) debe devolver un valor en [0, n).
func pickPause(lower, upper time.Duration, intn func(int) int) time.Duration {
	minS := int(lower / time.Second)
	if lower%time.Second != 0 {
		minS++
	}
	maxS := int(upper / time.Second)
	if maxS < minS {
		// rango sin segundos enteros adentro (ej. 200ms..800ms)
		return lower
	}
	return time.Duration(minS+intn(maxS-minS+1)) * time.Second
}
