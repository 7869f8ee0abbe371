package crawler

import (
	"context"
	"math/rand"
	"time"

	"golang.org/x/time/rate"

	"github.com/nmoreyra/catalogpulse/internal/metrics"
)

// Pacer is the crawl pacing policy: a hard navigation-rate ceiling plus a
// randomized rest after each page. Injected so tests substitute zero delay.
type Pacer interface {
	// WaitNavigation blocks until the next navigation is allowed.
	WaitNavigation(ctx context.Context) error
	// PageRest pauses after a successfully processed page. The rest is
	// fixed and non-adaptive: a jittered base interval, stretched to a
	// longer cooldown every Nth page.
	PageRest(ctx context.Context, page int)
}

// pauseController abstracts how the pacer sleeps, so pauses stay
// interruptible by context cancellation.
type pauseController interface {
	Pause(ctx context.Context, delay time.Duration)
}

type timerPauseController struct{}

func (timerPauseController) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// PacingConfig holds the jitter ranges and cooldown cadence.
type PacingConfig struct {
	DelayMin      time.Duration
	DelayMax      time.Duration
	CooldownEvery int
	CooldownMin   time.Duration
	CooldownMax   time.Duration
	NavPerSecond  float64
}

// JitterPacer implements Pacer with randomized intervals.
type JitterPacer struct {
	cfg     PacingConfig
	limiter *rate.Limiter
	pause   pauseController
}

// NewJitterPacer builds the production pacing policy.
func NewJitterPacer(cfg PacingConfig) *JitterPacer {
	limit := rate.Limit(cfg.NavPerSecond)
	if cfg.NavPerSecond <= 0 {
		limit = rate.Inf
	}
	return &JitterPacer{
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		pause:   timerPauseController{},
	}
}

// WaitNavigation enforces the navigation-rate ceiling.
func (p *JitterPacer) WaitNavigation(ctx context.Context) error {
	start := time.Now()
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	metrics.ObservePaceDelay(time.Since(start))
	return nil
}

// PageRest sleeps a jittered base interval; every CooldownEvery-th page it
// sleeps the longer cooldown interval instead.
func (p *JitterPacer) PageRest(ctx context.Context, page int) {
	delay := randomBetween(p.cfg.DelayMin, p.cfg.DelayMax)
	if p.cfg.CooldownEvery > 0 && page%p.cfg.CooldownEvery == 0 {
		delay = randomBetween(p.cfg.CooldownMin, p.cfg.CooldownMax)
	}
	metrics.ObservePaceDelay(delay)
	p.pause.Pause(ctx, delay)
}

func randomBetween(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rand.Int63n(int64(hi-lo)))
}

// ZeroDelayPacer is a Pacer that never waits. For tests.
type ZeroDelayPacer struct{}

// WaitNavigation returns immediately.
func (ZeroDelayPacer) WaitNavigation(context.Context) error { return nil }

// PageRest returns immediately.
func (ZeroDelayPacer) PageRest(context.Context, int) {}
