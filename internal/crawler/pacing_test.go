package crawler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingPause struct {
	delays []time.Duration
}

func (r *recordingPause) Pause(_ context.Context, d time.Duration) {
	r.delays = append(r.delays, d)
}

func TestJitterPacerStaysInBaseRange(t *testing.T) {
	t.Parallel()

	rec := &recordingPause{}
	p := NewJitterPacer(PacingConfig{
		DelayMin:      100 * time.Millisecond,
		DelayMax:      200 * time.Millisecond,
		CooldownEvery: 0,
	})
	p.pause = rec

	for page := 1; page <= 20; page++ {
		p.PageRest(context.Background(), page)
	}

	require.Len(t, rec.delays, 20)
	for _, d := range rec.delays {
		require.GreaterOrEqual(t, d, 100*time.Millisecond)
		require.Less(t, d, 200*time.Millisecond)
	}
}

func TestJitterPacerCooldownCadence(t *testing.T) {
	t.Parallel()

	rec := &recordingPause{}
	p := NewJitterPacer(PacingConfig{
		DelayMin:      time.Millisecond,
		DelayMax:      2 * time.Millisecond,
		CooldownEvery: 5,
		CooldownMin:   time.Second,
		CooldownMax:   2 * time.Second,
	})
	p.pause = rec

	for page := 1; page <= 10; page++ {
		p.PageRest(context.Background(), page)
	}

	// Pages 5 and 10 take the long cooldown, the rest the short jitter.
	for i, d := range rec.delays {
		page := i + 1
		if page%5 == 0 {
			require.GreaterOrEqual(t, d, time.Second, "page %d", page)
		} else {
			require.Less(t, d, 10*time.Millisecond, "page %d", page)
		}
	}
}

func TestJitterPacerNavigationCeiling(t *testing.T) {
	t.Parallel()

	p := NewJitterPacer(PacingConfig{NavPerSecond: 0})
	// Unlimited rate never blocks.
	for i := 0; i < 5; i++ {
		require.NoError(t, p.WaitNavigation(context.Background()))
	}
}

func TestJitterPacerNavigationCanceled(t *testing.T) {
	t.Parallel()

	p := NewJitterPacer(PacingConfig{NavPerSecond: 0.001})
	require.NoError(t, p.WaitNavigation(context.Background())) // burst token

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, p.WaitNavigation(ctx))
}

func TestZeroDelayPacer(t *testing.T) {
	t.Parallel()

	var p ZeroDelayPacer
	require.NoError(t, p.WaitNavigation(context.Background()))
	p.PageRest(context.Background(), 5)
}
