package realtime

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mugisham37/real-time-chat-application-sub002/internal/repositories"
)

// RatePolicy is one fixed-window admission limit.
type RatePolicy struct {
	Limit  int64
	Window time.Duration
}

// RateGuard gates inbound events with three independent store-backed
// policies: a blanket per-user window with an escalating block once
// exceeded, a short burst window, and a per-event-kind table. Counters live
// in the ephemeral store so limits hold across server instances.
type RateGuard struct {
	store   repositories.RateLimitRepository
	blanket RatePolicy
	burst   RatePolicy
	byEvent map[string]RatePolicy

	blockBase time.Duration
	blockMax  time.Duration
}

func NewRateGuard(store repositories.RateLimitRepository) *RateGuard {
	return &RateGuard{
		store:   store,
		blanket: RatePolicy{Limit: 100, Window: time.Minute},
		burst:   RatePolicy{Limit: 15, Window: 2 * time.Second},
		byEvent: map[string]RatePolicy{
			EventCallOffer:      {Limit: 10, Window: time.Minute},
			EventTypingStatus:   {Limit: 60, Window: time.Minute},
			EventPresenceUpdate: {Limit: 10, Window: time.Minute},
		},
		blockBase: 30 * time.Second,
		blockMax:  10 * time.Minute,
	}
}

// Allow admits or rejects one inbound event for the subject (the owning
// user, or the remote address before authentication). Every trip returns a
// RateLimited error naming the policy; only the blanket policy escalates to
// a timed full block. Store failures fail open with a log line so a
// degraded store never silences the whole chat.
func (g *RateGuard) Allow(ctx context.Context, subject, event string) error {
	if remaining, err := g.store.BlockedFor(ctx, subject); err != nil {
		log.Printf("ratelimit: block check failed for %s: %v", subject, err)
	} else if remaining > 0 {
		return NewRateLimitError("blanket", remaining)
	}

	count, err := g.increment(ctx, fmt.Sprintf("blanket:%s", subject), g.blanket.Window)
	if err == nil && count > g.blanket.Limit {
		return g.escalate(ctx, subject)
	}

	count, err = g.increment(ctx, fmt.Sprintf("burst:%s", subject), g.burst.Window)
	if err == nil && count > g.burst.Limit {
		return NewRateLimitError("burst", g.burst.Window)
	}

	if policy, ok := g.byEvent[event]; ok {
		count, err = g.increment(ctx, fmt.Sprintf("event:%s:%s", event, subject), policy.Window)
		if err == nil && count > policy.Limit {
			return NewRateLimitError(event, policy.Window)
		}
	}
	return nil
}

// escalate blocks the subject for a period that grows with repeated
// violations, capped at blockMax.
func (g *RateGuard) escalate(ctx context.Context, subject string) error {
	violations, err := g.increment(ctx, fmt.Sprintf("violations:%s", subject), 10*time.Minute)
	if err != nil {
		violations = 1
	}

	block := g.blockBase * time.Duration(violations)
	if block > g.blockMax {
		block = g.blockMax
	}
	if err := g.store.Block(ctx, subject, block); err != nil {
		log.Printf("ratelimit: failed to block %s: %v", subject, err)
	}
	return NewRateLimitError("blanket", block)
}

func (g *RateGuard) increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := g.store.Increment(ctx, key, window)
	if err != nil {
		log.Printf("ratelimit: counter %s failed: %v", key, err)
		return 0, err
	}
	return count, nil
}
