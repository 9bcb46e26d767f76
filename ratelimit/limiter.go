package ratelimit

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/stemtutor/tutorflow/types"
)

// Tier names a quota class.
type Tier string

const (
	// TierFree is the default quota class.
	TierFree Tier = "free"

	// TierPro is the elevated quota class.
	TierPro Tier = "pro"
)

// Config holds the limiter tunables.
type Config struct {
	// FreeLimit is the request budget per window for the free tier.
	FreeLimit int

	// ProLimit is the request budget per window for the pro tier.
	ProLimit int

	// Window is the refill horizon: a full budget regenerates over one
	// window of inactivity.
	Window time.Duration

	// FailOpen admits requests when the store is unreachable instead of
	// rejecting them.
	FailOpen bool
}

// Decision is the outcome of a limiter check.
type Decision struct {
	// Allowed reports whether the request may proceed.
	Allowed bool `json:"allowed"`

	// Limit is the tier's budget per window.
	Limit int `json:"limit"`

	// Remaining is the whole number of requests left right now.
	Remaining int `json:"remaining"`

	// WindowSeconds is the refill horizon in whole seconds.
	WindowSeconds int `json:"window_seconds"`

	// ResetInSeconds is the wait, rounded up to whole seconds, until the
	// next request would be admitted. Zero when Allowed.
	ResetInSeconds int `json:"reset_in_seconds"`

	// ResetIn is the precise wait. Callers that need sub-second precision
	// read this; the wire carries ResetInSeconds.
	ResetIn time.Duration `json:"-"`

	// Tier is the quota class the decision applied.
	Tier Tier `json:"tier"`
}

// Limiter is a continuous-refill token bucket per identity, backed by a
// shared store. Tokens accrue at limit/window per unit time up to the
// limit; each admitted request spends one token.
//
// The read-modify-write per check is not atomic across nodes, so two
// concurrent checks for one identity can both be admitted on the same
// token. The quota is a fairness mechanism, not a hard security bound.
type Limiter struct {
	store  Store
	config Config
	logger *zap.Logger
	now    func() time.Time

	onDecision     func(tier string, allowed bool)
	onStoreFailure func()
}

// NewLimiter creates a limiter over the given store.
func NewLimiter(store Store, config Config, logger *zap.Logger) *Limiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{
		store:  store,
		config: config,
		logger: logger.With(zap.String("component", "ratelimit")),
		now:    time.Now,
	}
}

// WithNow replaces the clock. Tests use this to control elapsed time.
func (l *Limiter) WithNow(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// WithObserver registers metrics callbacks: onDecision fires for every
// admit or deny from Check, onStoreFailure for every store error. Either
// may be nil.
func (l *Limiter) WithObserver(onDecision func(tier string, allowed bool), onStoreFailure func()) *Limiter {
	l.onDecision = onDecision
	l.onStoreFailure = onStoreFailure
	return l
}

// decision assembles a Decision, deriving the serialized window and
// reset-wait seconds.
func (l *Limiter) decision(allowed bool, limit, remaining int, resetIn time.Duration, tier Tier) *Decision {
	return &Decision{
		Allowed:        allowed,
		Limit:          limit,
		Remaining:      remaining,
		WindowSeconds:  int(l.config.Window.Seconds()),
		ResetInSeconds: int(math.Ceil(resetIn.Seconds())),
		ResetIn:        resetIn,
		Tier:           tier,
	}
}

func (l *Limiter) observeDecision(tier Tier, allowed bool) {
	if l.onDecision != nil {
		l.onDecision(string(tier), allowed)
	}
}

func (l *Limiter) limitFor(tier Tier) (int, Tier) {
	if tier == TierPro {
		return l.config.ProLimit, TierPro
	}
	return l.config.FreeLimit, TierFree
}

// refill returns the current fractional balance from a stored bucket,
// accruing tokens for the elapsed time and capping at the limit.
func (l *Limiter) refill(b *Bucket, limit int, now time.Time) float64 {
	if b == nil {
		return float64(limit)
	}
	elapsed := now.Sub(b.Last)
	if elapsed < 0 {
		elapsed = 0
	}
	tokens := b.Tokens + elapsed.Seconds()*float64(limit)/l.config.Window.Seconds()
	return math.Min(float64(limit), tokens)
}

// resetIn returns the wait until the balance reaches one token.
func (l *Limiter) resetIn(tokens float64, limit int) time.Duration {
	deficit := 1.0 - tokens
	if deficit <= 0 {
		return 0
	}
	perToken := l.config.Window.Seconds() / float64(limit)
	return time.Duration(math.Ceil(deficit*perToken*1000)) * time.Millisecond
}

// Check spends one token for the identity if available. On a store failure
// it fails open or closed per configuration.
func (l *Limiter) Check(ctx context.Context, identity string, tier Tier) (*Decision, error) {
	limit, resolved := l.limitFor(tier)
	now := l.now()

	stored, err := l.store.GetBucket(ctx, identity)
	if err != nil {
		return l.storeFailure(identity, resolved, limit, err)
	}

	tokens := l.refill(stored, limit, now)

	if tokens < 1 {
		l.observeDecision(resolved, false)
		return l.decision(false, limit, 0, l.resetIn(tokens, limit), resolved), nil
	}

	tokens--
	if err := l.store.SetBucket(ctx, identity, &Bucket{Tokens: tokens, Last: now}, 2*l.config.Window); err != nil {
		return l.storeFailure(identity, resolved, limit, err)
	}

	l.observeDecision(resolved, true)
	return l.decision(true, limit, int(math.Floor(tokens)), 0, resolved), nil
}

// Quota reports the identity's current balance without spending a token.
func (l *Limiter) Quota(ctx context.Context, identity string, tier Tier) (*Decision, error) {
	limit, resolved := l.limitFor(tier)

	stored, err := l.store.GetBucket(ctx, identity)
	if err != nil {
		return l.storeFailure(identity, resolved, limit, err)
	}

	tokens := l.refill(stored, limit, l.now())

	var resetIn time.Duration
	if tokens < 1 {
		resetIn = l.resetIn(tokens, limit)
	}
	return l.decision(tokens >= 1, limit, int(math.Floor(tokens)), resetIn, resolved), nil
}

// Reset clears the identity's bucket, restoring a full budget.
func (l *Limiter) Reset(ctx context.Context, identity string) error {
	return l.store.DeleteBucket(ctx, identity)
}

func (l *Limiter) storeFailure(identity string, tier Tier, limit int, err error) (*Decision, error) {
	if l.onStoreFailure != nil {
		l.onStoreFailure()
	}
	if l.config.FailOpen {
		l.logger.Warn("rate limit store unavailable, admitting request",
			zap.String("identity", identity),
			zap.Error(err),
		)
		return l.decision(true, limit, limit, 0, tier), nil
	}
	return nil, types.NewError(types.ErrRateLimiterUnavailable, "rate limit store unavailable").WithCause(err)
}
