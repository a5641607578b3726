// Package ratelimit applies per-principal token buckets to request
// groups. Authenticated callers are keyed by user ID, anonymous ones by
// client IP; admins are exempt.
package ratelimit

import (
	"math"
	"sync"
	"time"

	"github.com/gkchatty/gkchatty-local/internal/config"
)

// Rule is a refill rate with a burst ceiling.
type Rule struct {
	Rate  float64
	Burst int
}

// RuleFromConfig converts a configured per-minute limit into a Rule.
func RuleFromConfig(rc config.RuleConfig) Rule {
	return Rule{
		Rate:  float64(rc.PerMinute) / 60.0,
		Burst: rc.Burst,
	}
}

// Limiter tracks token buckets keyed by caller and group.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	tokens float64
	last   time.Time
}

// NewLimiter creates a Limiter. now may be nil; tests inject a clock.
func NewLimiter(now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	return &Limiter{
		buckets: make(map[string]*bucket),
		now:     now,
	}
}

// Allow takes one token from the bucket for key, refilling it first from
// the elapsed time. When the bucket is empty it reports how long until
// the next token.
func (l *Limiter) Allow(key string, rule Rule) (bool, time.Duration) {
	if l == nil {
		return true, 0
	}
	if rule.Rate <= 0 || rule.Burst <= 0 {
		return true, 0
	}

	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(rule.Burst), last: now}
		l.buckets[key] = b
	}

	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens = math.Min(float64(rule.Burst), b.tokens+elapsed*rule.Rate)
		b.last = now
	}

	if b.tokens >= 1 {
		b.tokens -= 1
		return true, 0
	}

	needed := 1 - b.tokens
	waitSec := needed / rule.Rate
	if waitSec < 0 {
		waitSec = 0
	}
	return false, time.Duration(math.Ceil(waitSec*1000.0)) * time.Millisecond
}

// Remaining reports how many whole tokens key has left under rule,
// without taking one. Used for the X-RateLimit-Remaining header.
func (l *Limiter) Remaining(key string, rule Rule) int {
	if l == nil || rule.Rate <= 0 || rule.Burst <= 0 {
		return rule.Burst
	}

	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		return rule.Burst
	}
	tokens := math.Min(float64(rule.Burst), b.tokens+now.Sub(b.last).Seconds()*rule.Rate)
	return int(tokens)
}
