// Package budget tracks iteration, token, and call budgets for a single
// verification run. The tracker is the only state mutated from concurrent
// tasks, so all movement goes through reserve/commit/refund under one lock
// rather than direct increments.
package budget

import "sync"

// Tracker holds the remaining budgets for one run. Budgets are soft
// deadlines enforced by counting, not wall-clock expiry.
type Tracker struct {
	mu sync.Mutex

	tokenBudget    int
	tokensUsed     int
	tokensReserved int

	callBudget int
	callsUsed  int
}

// Usage is a point-in-time snapshot of consumption.
type Usage struct {
	TokenBudget    int `json:"token_budget"`
	TokensUsed     int `json:"tokens_used"`
	TokensReserved int `json:"tokens_reserved"`
	CallBudget     int `json:"call_budget"`
	CallsUsed      int `json:"calls_used"`
}

// NewTracker creates a tracker with the given budgets. A zero or negative
// budget means unlimited.
func NewTracker(tokenBudget, callBudget int) *Tracker {
	return &Tracker{tokenBudget: tokenBudget, callBudget: callBudget}
}

// Reservation is an uncommitted token allotment held against the budget.
type Reservation struct {
	tracker *Tracker
	tokens  int
	settled bool
}

// Reserve sets aside an estimated token allotment ahead of dispatching work.
// It fails when the estimate would exceed the remaining budget.
func (t *Tracker) Reserve(tokens int) (*Reservation, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.tokenBudget > 0 && t.tokensUsed+t.tokensReserved+tokens > t.tokenBudget {
		return nil, false
	}
	t.tokensReserved += tokens
	return &Reservation{tracker: t, tokens: tokens}, true
}

// Commit settles the reservation with actual usage, refunding the unused
// remainder. Actual usage above the estimate is charged in full.
func (r *Reservation) Commit(actual int) {
	r.tracker.mu.Lock()
	defer r.tracker.mu.Unlock()

	if r.settled {
		return
	}
	r.settled = true
	r.tracker.tokensReserved -= r.tokens
	if actual < 0 {
		actual = 0
	}
	r.tracker.tokensUsed += actual
}

// Refund releases the full reservation without charging anything.
func (r *Reservation) Refund() {
	r.Commit(0)
}

// RecordCall charges one external call. It returns false once the call
// budget is spent; the caller stops cleanly rather than erroring.
func (t *Tracker) RecordCall() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.callBudget > 0 && t.callsUsed >= t.callBudget {
		return false
	}
	t.callsUsed++
	return true
}

// TokensExhausted reports whether the token budget is fully consumed.
func (t *Tracker) TokensExhausted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tokenBudget > 0 && t.tokensUsed >= t.tokenBudget
}

// CallsExhausted reports whether the call budget is fully consumed.
func (t *Tracker) CallsExhausted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.callBudget > 0 && t.callsUsed >= t.callBudget
}

// Snapshot returns current consumption for reporting.
func (t *Tracker) Snapshot() Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Usage{
		TokenBudget:    t.tokenBudget,
		TokensUsed:     t.tokensUsed,
		TokensReserved: t.tokensReserved,
		CallBudget:     t.callBudget,
		CallsUsed:      t.callsUsed,
	}
}
