package match

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"strangerchat/internal/pkg/logx"
)

// TokenSource finds push tokens worth notifying.
type TokenSource interface {
	EligibleTokens(ctx context.Context, limit int, cooldown time.Duration, excludeUserIDs []string) ([]string, error)
}

// PushSender delivers the "people are waiting" notification. It handles its own errors.
type PushSender interface {
	Send(ctx context.Context, tokens []string, poolSize int)
}

// LiquidityOptions tunes the lookup. Zero values select the defaults.
type LiquidityOptions struct {
	Limit    int
	Cooldown time.Duration
	Timeout  time.Duration
}

// Liquidity notifies offline devices when users are waiting to be paired.
// Triggers arriving while a run is in flight are coalesced into one follow-up run
// that uses the most recent pool size, so a burst of joins never pushes a device twice.
type Liquidity struct {
	tokens TokenSource
	sender PushSender

	limit    int
	cooldown time.Duration
	timeout  time.Duration

	mu      sync.Mutex
	running bool
	closed  bool
	next    *liquidityRun

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	logger zerolog.Logger
}

type liquidityRun struct {
	poolSize int
	exclude  []string
}

// NewLiquidity wires a token source to a push sender.
func NewLiquidity(tokens TokenSource, sender PushSender, opts LiquidityOptions) *Liquidity {
	if opts.Limit <= 0 {
		opts.Limit = 100
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = 30 * time.Minute
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Liquidity{
		tokens:   tokens,
		sender:   sender,
		limit:    opts.Limit,
		cooldown: opts.Cooldown,
		timeout:  opts.Timeout,
		ctx:      ctx,
		cancel:   cancel,
		logger:   logx.Component("liquidity"),
	}
}

// Trigger schedules a notification run and returns immediately.
func (l *Liquidity) Trigger(poolSize int, connectedUserIDs []string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}

	l.next = &liquidityRun{poolSize: poolSize, exclude: connectedUserIDs}
	if l.running {
		return
	}

	l.running = true
	l.wg.Add(1)
	go l.loop()
}

func (l *Liquidity) loop() {
	defer l.wg.Done()

	for {
		l.mu.Lock()
		run := l.next
		l.next = nil
		if run == nil {
			l.running = false
			l.mu.Unlock()
			return
		}
		l.mu.Unlock()

		l.notify(run)
	}
}

func (l *Liquidity) notify(run *liquidityRun) {
	ctx, cancel := context.WithTimeout(l.ctx, l.timeout)
	defer cancel()

	tokens, err := l.tokens.EligibleTokens(ctx, l.limit, l.cooldown, run.exclude)
	if err != nil {
		l.logger.Error().Err(err).Msg("Eligible token lookup failed.")
		return
	}
	if len(tokens) == 0 {
		return
	}

	l.logger.Info().Int("pool_size", run.poolSize).Int("tokens", len(tokens)).Msg("Notifying devices about waiting users.")
	l.sender.Send(ctx, tokens, run.poolSize)
}

// Wait stops accepting triggers and blocks until every accepted run finishes.
// If ctx is done first, the remaining work is cancelled and ctx's error returned.
func (l *Liquidity) Wait(ctx context.Context) error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		l.cancel()
		return nil
	case <-ctx.Done():
		l.cancel()
		return ctx.Err()
	}
}
