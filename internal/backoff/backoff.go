// Package backoff decides what happens to a frontier task after a failed
// exploration attempt.
//
// The policy is a pure function from (failure kind, task state, current
// time) to a decision: requeue at some notBefore timestamp, or give up
// and mark the node permanently failed. No component ever sleeps on a
// delay; the frontier simply withholds the task until its notBefore.
package backoff

import "time"

// Default policy values.
const (
	// DefaultBaseDelay is the backoff delay for the first transient retry.
	// Doubling per attempt from 2 seconds reaches the cap within a handful
	// of retries without hammering a flaky site.
	DefaultBaseDelay = 2 * time.Second

	// DefaultMaxDelay caps exponential growth. Five minutes keeps a
	// near-dead site from pushing a task days into the future.
	DefaultMaxDelay = 5 * time.Minute

	// DefaultMaxAttempts bounds transient retries per node. Beyond this
	// the node is marked failed_permanent.
	DefaultMaxAttempts = 5

	// DefaultChallengeDelay is the fixed wait applied after an anti-bot
	// challenge. Bot walls typically lift after minutes, not seconds, so
	// this is deliberately much longer than the transient base delay.
	DefaultChallengeDelay = 10 * time.Minute

	// DefaultChallengeBudget caps the total wall-clock time a node may
	// spend in challenge-wait before escalating to failed_permanent.
	DefaultChallengeBudget = 2 * time.Hour
)

// Policy holds the retry and challenge-wait parameters for one run.
// The zero value is not usable; construct with DefaultPolicy and adjust.
type Policy struct {
	// BaseDelay is the delay before the first transient retry. Each
	// subsequent attempt doubles it, capped at MaxDelay.
	BaseDelay time.Duration

	// MaxDelay caps the exponential backoff.
	MaxDelay time.Duration

	// MaxAttempts is the number of exploration attempts allowed per node
	// before it fails permanently. Challenge waits do not consume
	// attempts.
	MaxAttempts int

	// ChallengeDelay is the fixed requeue delay after a challenge.
	ChallengeDelay time.Duration

	// ChallengeBudget caps total wall-clock time in challenge-wait,
	// measured from the task's first challenge.
	ChallengeBudget time.Duration
}

// DefaultPolicy returns a Policy with the package defaults.
func DefaultPolicy() Policy {
	return Policy{
		BaseDelay:       DefaultBaseDelay,
		MaxDelay:        DefaultMaxDelay,
		MaxAttempts:     DefaultMaxAttempts,
		ChallengeDelay:  DefaultChallengeDelay,
		ChallengeBudget: DefaultChallengeBudget,
	}
}

// Outcome is what the controller decided to do with a failed task.
type Outcome int

// Decision outcomes.
const (
	// OutcomeRetry requeues the task with the decision's NotBefore.
	OutcomeRetry Outcome = iota

	// OutcomeFail marks the node failed_permanent and drops the task.
	OutcomeFail
)

// Decision is the controller's verdict for one failed attempt.
type Decision struct {
	// Outcome says whether to retry or give up.
	Outcome Outcome

	// NotBefore is the earliest time the requeued task may be claimed.
	// Only meaningful for OutcomeRetry.
	NotBefore time.Time

	// CountsAttempt reports whether the requeue increments the task's
	// attempt counter. Challenge waits do not.
	CountsAttempt bool
}

// Transient decides the fate of a task after a transient failure on its
// current attempt. The attempt argument is the number of attempts already
// made, including the one that just failed.
func (p Policy) Transient(attempt int, now time.Time) Decision {
	if attempt >= p.MaxAttempts {
		return Decision{Outcome: OutcomeFail}
	}
	return Decision{
		Outcome:       OutcomeRetry,
		NotBefore:     now.Add(p.delay(attempt)),
		CountsAttempt: true,
	}
}

// Challenge decides the fate of a task after an anti-bot challenge.
// firstChallenge is when the node first hit a challenge; pass now for the
// first occurrence.
func (p Policy) Challenge(firstChallenge, now time.Time) Decision {
	if now.Sub(firstChallenge) >= p.ChallengeBudget {
		return Decision{Outcome: OutcomeFail}
	}
	return Decision{
		Outcome:       OutcomeRetry,
		NotBefore:     now.Add(p.ChallengeDelay),
		CountsAttempt: false,
	}
}

// delay computes the exponential backoff for the given attempt number
// (1-based: attempt 1 waits BaseDelay, attempt 2 waits 2x, and so on).
func (p Policy) delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}
