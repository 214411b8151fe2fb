// Package guard implements the Live-Mode Cost/Time Guard (C9, spec §4.9):
// four independent circuit breakers gating can_start_investigation, cost
// accounting by source, quota counters, and emergency-stop snapshotting.
// Grounded on the teacher's sony/gobreaker circuit-breaker wiring pattern
// (test/integration/notification/suite_test.go's gobreaker.Settings usage).
package guard

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"

	"github.com/olorin-ai/hybrid-investigator/internal/config"
)

// Source identifies where a cost was incurred.
type Source string

const (
	SourceSnowflake   Source = "snowflake"
	SourceLLM         Source = "llm"
	SourceExternalAPI Source = "external_api"
)

// Limits configures the guard's breakers. Only the cost limit is scaled,
// by the safety multiplier passed to RecordCost; the time and error limits
// apply as given.
type Limits struct {
	PerInvestigationCostUSD float64
	PerSessionCostUSD       float64
	PerInvestigationTime    time.Duration
	PerSessionTime          time.Duration
	ConsecutiveFailureLimit int
	ErrorRateThreshold      float64
	ErrorRateWindow         time.Duration
}

// CostBreakdown is the per-source cost ledger.
type CostBreakdown struct {
	Snowflake   float64
	LLM         float64
	ExternalAPI float64
}

// Total sums the breakdown.
func (c CostBreakdown) Total() float64 {
	return c.Snowflake + c.LLM + c.ExternalAPI
}

// QuotaCounters tracks consumption against credits/tokens/calls quotas.
type QuotaCounters struct {
	CreditsUsed int64
	TokensUsed  int64
	CallsUsed   int64
}

// EmergencyState is the snapshot handed to the snapshot function and to
// every emergency callback when an emergency stop fires (§4.9).
type EmergencyState struct {
	Timestamp       time.Time
	Reason          string
	CostBreakdown   CostBreakdown
	LastErrors      []string
	BreakerStates   map[string]gobreaker.State
	SafetyLevel     config.SafetyLevel
}

// EmergencyCallback is invoked, in registration order, whenever an
// emergency stop fires.
type EmergencyCallback func(EmergencyState)

// Guard applies only in LIVE mode. It is safe for concurrent use across
// investigations; cost and quota counters are updated atomically.
type Guard struct {
	mode   config.Mode
	limits Limits

	costBreaker  *gobreaker.CircuitBreaker
	timeBreaker  *gobreaker.CircuitBreaker
	errorBreaker *gobreaker.CircuitBreaker
	manualKill   int32 // atomic bool

	mu           sync.Mutex
	cost         CostBreakdown
	quotas       QuotaCounters
	lastErrors   []string
	sessionStart time.Time
	lastSafetyLevel config.SafetyLevel

	callbacks []EmergencyCallback
	snapshot  func(EmergencyState) error
}

// New builds a Guard. snapshot persists an EmergencyState (e.g. to
// emergency_states/<timestamp>.json); pass nil to skip persistence (tests).
func New(mode config.Mode, limits Limits, snapshot func(EmergencyState) error) *Guard {
	g := &Guard{mode: mode, limits: limits, snapshot: snapshot, sessionStart: time.Now()}

	readyToTrip := func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= uint32(limits.ConsecutiveFailureLimit)
	}

	g.costBreaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "cost",
		ReadyToTrip: readyToTrip,
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.onTrip(name, to)
		},
	})
	g.timeBreaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "time",
		ReadyToTrip: readyToTrip,
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.onTrip(name, to)
		},
	})
	g.errorBreaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "error",
		Interval:    limits.ErrorRateWindow,
		ReadyToTrip: readyToTrip,
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.onTrip(name, to)
		},
	})

	return g
}

// RegisterEmergencyCallback adds a callback run on every emergency stop.
func (g *Guard) RegisterEmergencyCallback(cb EmergencyCallback) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.callbacks = append(g.callbacks, cb)
}

// TripManualKillSwitch activates the manual breaker (§4.9's "kill switch
// activated (external signal)").
func (g *Guard) TripManualKillSwitch(reason string) {
	atomic.StoreInt32(&g.manualKill, 1)
	g.setLastSafetyLevel(config.SafetyLevelEmergency)
	g.emergencyStop("manual_kill_switch: "+reason, "", gobreaker.StateClosed)
}

// ClearManualKillSwitch deactivates the manual breaker.
func (g *Guard) ClearManualKillSwitch() {
	atomic.StoreInt32(&g.manualKill, 0)
}

// CanStartInvestigation implements §4.9's single gate: denies a new
// investigation if any of the four breakers is open. A no-op (always
// allows) outside LIVE mode.
func (g *Guard) CanStartInvestigation() (bool, string) {
	if g.mode != config.ModeLive {
		return true, ""
	}
	if atomic.LoadInt32(&g.manualKill) == 1 {
		return false, "manual kill switch active"
	}
	if g.costBreaker.State() == gobreaker.StateOpen {
		return false, "cost breaker open"
	}
	if g.timeBreaker.State() == gobreaker.StateOpen {
		return false, "time breaker open"
	}
	if g.errorBreaker.State() == gobreaker.StateOpen {
		return false, "error breaker open"
	}
	return true, ""
}

// RecordCost adds to the per-source cost ledger and trips the cost breaker
// once the ledger total exceeds PerSessionCostUSD scaled by
// safetyMultiplier. PerInvestigationCostUSD is not checked.
func (g *Guard) RecordCost(source Source, amountUSD float64, safetyMultiplier float64, safetyLevel config.SafetyLevel) {
	g.mu.Lock()
	switch source {
	case SourceSnowflake:
		g.cost.Snowflake += amountUSD
	case SourceLLM:
		g.cost.LLM += amountUSD
	case SourceExternalAPI:
		g.cost.ExternalAPI += amountUSD
	}
	total := g.cost.Total()
	g.mu.Unlock()

	limit := g.limits.PerSessionCostUSD * safetyMultiplier
	if limit > 0 && total > limit {
		g.setLastSafetyLevel(safetyLevel)
		_, _ = g.costBreaker.Execute(func() (interface{}, error) {
			return nil, fmt.Errorf("session cost %.2f exceeded limit %.2f", total, limit)
		})
	}
}

// RecordQuotaUsage increments quota counters.
func (g *Guard) RecordQuotaUsage(credits, tokens, calls int64) {
	atomic.AddInt64(&g.quotas.CreditsUsed, credits)
	atomic.AddInt64(&g.quotas.TokensUsed, tokens)
	atomic.AddInt64(&g.quotas.CallsUsed, calls)
}

// CheckElapsed evaluates the time breaker against per-investigation and
// per-session time limits.
func (g *Guard) CheckElapsed(investigationElapsed time.Duration, safetyLevel config.SafetyLevel) {
	sessionElapsed := time.Since(g.sessionStart)
	if g.limits.PerInvestigationTime > 0 && investigationElapsed > g.limits.PerInvestigationTime ||
		g.limits.PerSessionTime > 0 && sessionElapsed > g.limits.PerSessionTime {
		g.setLastSafetyLevel(safetyLevel)
		_, _ = g.timeBreaker.Execute(func() (interface{}, error) {
			return nil, fmt.Errorf("elapsed time exceeded limit")
		})
	}
}

// RecordError feeds a failure into the error breaker, which trips after
// ConsecutiveFailureLimit consecutive failures; while closed, its counts
// reset every ErrorRateWindow. ErrorRateThreshold is not consulted: there
// is no error-rate trip.
func (g *Guard) RecordError(message string, safetyLevel config.SafetyLevel) {
	g.mu.Lock()
	g.lastErrors = append(g.lastErrors, message)
	if len(g.lastErrors) > 20 {
		g.lastErrors = g.lastErrors[len(g.lastErrors)-20:]
	}
	g.mu.Unlock()

	g.setLastSafetyLevel(safetyLevel)
	_, _ = g.errorBreaker.Execute(func() (interface{}, error) {
		return nil, fmt.Errorf("%s", message)
	})
}

func (g *Guard) setLastSafetyLevel(level config.SafetyLevel) {
	g.mu.Lock()
	g.lastSafetyLevel = level
	g.mu.Unlock()
}

// RecordSuccess feeds a successful call into the error breaker so its
// consecutive-failure count resets.
func (g *Guard) RecordSuccess() {
	_, _ = g.errorBreaker.Execute(func() (interface{}, error) { return nil, nil })
}

func (g *Guard) onTrip(name string, to gobreaker.State) {
	if to != gobreaker.StateOpen {
		return
	}
	g.emergencyStop(fmt.Sprintf("%s_breaker_tripped", name), name, to)
}

// emergencyStop implements §4.9: builds an EmergencyState, passes it to the
// snapshot function given to New (if any), and runs every registered
// callback; the guard itself writes no file. Called from
// TripManualKillSwitch directly, and from onTrip whenever a breaker's
// OnStateChange fires (covering the cost/time/error breakers uniformly).
// tripped names the breaker whose OnStateChange is running (empty for the
// kill switch): gobreaker holds that breaker's lock during the callback, so
// its state is taken from trippedState rather than from State().
func (g *Guard) emergencyStop(reason, tripped string, trippedState gobreaker.State) {
	breakerStates := map[string]gobreaker.State{}
	for name, cb := range map[string]*gobreaker.CircuitBreaker{"cost": g.costBreaker, "time": g.timeBreaker, "error": g.errorBreaker} {
		if name == tripped {
			breakerStates[name] = trippedState
			continue
		}
		breakerStates[name] = cb.State()
	}

	g.mu.Lock()
	state := EmergencyState{
		Timestamp:     time.Now(),
		Reason:        reason,
		CostBreakdown: g.cost,
		LastErrors:    append([]string(nil), g.lastErrors...),
		BreakerStates: breakerStates,
		SafetyLevel:   g.lastSafetyLevel,
	}
	callbacks := append([]EmergencyCallback(nil), g.callbacks...)
	g.mu.Unlock()

	if g.snapshot != nil {
		_ = g.snapshot(state)
	}
	for _, cb := range callbacks {
		cb(state)
	}
}
