package backoff

import (
	"testing"
	"time"
)

// TestTransientBackoffGrowth tests that each retry is scheduled strictly
// later than the previous one, up to the cap.
func TestTransientBackoffGrowth(t *testing.T) {
	t.Parallel()

	p := Policy{
		BaseDelay:   time.Second,
		MaxDelay:    time.Minute,
		MaxAttempts: 10,
	}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	var prev time.Duration
	for attempt := 1; attempt <= 6; attempt++ {
		d := p.Transient(attempt, now)
		if d.Outcome != OutcomeRetry {
			t.Fatalf("attempt %d: expected retry, got fail", attempt)
		}
		if !d.CountsAttempt {
			t.Errorf("attempt %d: transient retry should count as an attempt", attempt)
		}

		delay := d.NotBefore.Sub(now)
		if delay <= prev && delay != p.MaxDelay {
			t.Errorf("attempt %d: delay %v not greater than previous %v", attempt, delay, prev)
		}
		prev = delay
	}

	// Attempt 7 would want 64s, above the 60s cap.
	d := p.Transient(7, now)
	if got := d.NotBefore.Sub(now); got != time.Minute {
		t.Errorf("capped delay = %v, expected %v", got, time.Minute)
	}
}

// TestTransientExhaustsAttempts tests that the attempt cap is enforced
// and no retry beyond maxAttempts is ever scheduled.
func TestTransientExhaustsAttempts(t *testing.T) {
	t.Parallel()

	p := DefaultPolicy()
	now := time.Now()

	d := p.Transient(p.MaxAttempts-1, now)
	if d.Outcome != OutcomeRetry {
		t.Error("attempt below cap should retry")
	}

	d = p.Transient(p.MaxAttempts, now)
	if d.Outcome != OutcomeFail {
		t.Error("attempt at cap should fail permanently")
	}

	d = p.Transient(p.MaxAttempts+3, now)
	if d.Outcome != OutcomeFail {
		t.Error("attempt beyond cap should fail permanently")
	}
}

// TestChallengeDelay tests the fixed challenge-wait scheduling.
func TestChallengeDelay(t *testing.T) {
	t.Parallel()

	p := Policy{
		ChallengeDelay:  10 * time.Minute,
		ChallengeBudget: time.Hour,
	}
	now := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)

	d := p.Challenge(now, now)
	if d.Outcome != OutcomeRetry {
		t.Fatal("first challenge should retry")
	}
	if d.CountsAttempt {
		t.Error("challenge retry must not count against the attempt budget")
	}
	if got := d.NotBefore.Sub(now); got != 10*time.Minute {
		t.Errorf("challenge delay = %v, expected 10m", got)
	}
}

// TestChallengeBudgetExceeded tests escalation to permanent failure once
// the wall-clock budget is spent.
func TestChallengeBudgetExceeded(t *testing.T) {
	t.Parallel()

	p := Policy{
		ChallengeDelay:  10 * time.Minute,
		ChallengeBudget: time.Hour,
	}
	first := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)

	d := p.Challenge(first, first.Add(59*time.Minute))
	if d.Outcome != OutcomeRetry {
		t.Error("within budget should retry")
	}

	d = p.Challenge(first, first.Add(time.Hour))
	if d.Outcome != OutcomeFail {
		t.Error("at budget should fail permanently")
	}

	d = p.Challenge(first, first.Add(2*time.Hour))
	if d.Outcome != OutcomeFail {
		t.Error("beyond budget should fail permanently")
	}
}

// TestDelayValues tests the exact exponential sequence.
func TestDelayValues(t *testing.T) {
	t.Parallel()

	p := Policy{BaseDelay: 2 * time.Second, MaxDelay: 20 * time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 20 * time.Second}, // capped
		{9, 20 * time.Second}, // stays capped
	}

	for _, tt := range tests {
		if got := p.delay(tt.attempt); got != tt.want {
			t.Errorf("delay(%d) = %v, expected %v", tt.attempt, got, tt.want)
		}
	}
}
