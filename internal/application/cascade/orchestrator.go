// Package cascade contains the reward cascade business process that
// orchestrates achievement, badge, and cashback operations in a
// coordinated manner.
package cascade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bikemart-ng/loyalty-hub/internal/domain/loyalty"
	"github.com/bikemart-ng/loyalty-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REWARD CASCADE ORCHESTRATOR
// Business process: purchase → achievements → points → badges → cashback
// Flow: Load Catalog → Evaluate Achievements (loop to fixpoint) →
//
//	Refresh Points → Evaluate Badges → Disburse Cashback → Publish Events
//
// Each stage persists its own writes before the next stage runs.
// Uniqueness of unlock rows lives in the store; the orchestrator treats
// a duplicate insert as "someone else already handled it" and moves on.
// ══════════════════════════════════════════════════════════════════════════════

// CascadeInput contains data needed to run the cascade for one user.
type CascadeInput struct {
	// UserID - the customer to process rewards for.
	UserID shared.UserID

	// PurchaseID - the purchase that triggered this run (for logging).
	PurchaseID string

	// TriggerEvent - what triggered this run (e.g., "purchase_recorded", "retry").
	TriggerEvent string
}

// Validate checks if the input is valid.
func (i CascadeInput) Validate() error {
	if !i.UserID.IsValid() {
		return errors.New("cascade: user ID is required")
	}
	return nil
}

// CascadeResult contains the outcome of one cascade run.
type CascadeResult struct {
	// UserID - the customer that was processed.
	UserID shared.UserID

	// UnlockedAchievements - achievements newly unlocked by this run.
	UnlockedAchievements []*loyalty.Achievement

	// UnlockedBadges - badges newly unlocked by this run.
	UnlockedBadges []*loyalty.Badge

	// Disbursements - cashback outcomes for newly unlocked badges.
	Disbursements []DisbursementOutcome

	// TotalPoints - the user's points total after the run.
	TotalPoints shared.Points

	// ProcessedAt - when the run completed.
	ProcessedAt time.Time
}

// HasNewUnlocks returns true if anything was unlocked.
func (r *CascadeResult) HasNewUnlocks() bool {
	return len(r.UnlockedAchievements) > 0 || len(r.UnlockedBadges) > 0
}

// CascadeStep represents a step in the cascade flow.
type CascadeStep string

const (
	StepLoadCatalog          CascadeStep = "load_catalog"
	StepEvaluateAchievements CascadeStep = "evaluate_achievements"
	StepRefreshPoints        CascadeStep = "refresh_points"
	StepEvaluateBadges       CascadeStep = "evaluate_badges"
	StepDisburseCashback     CascadeStep = "disburse_cashback"
	StepPublishEvents        CascadeStep = "publish_events"
	StepCascadeComplete      CascadeStep = "complete"
)

// CascadeState tracks the current state of a cascade run.
type CascadeState struct {
	CurrentStep          CascadeStep
	Input                CascadeInput
	Achievements         []*loyalty.Achievement
	Badges               []*loyalty.Badge
	Snapshot             loyalty.UserSnapshot
	UnlockedAchievements []*loyalty.Achievement
	UnlockedBadges       []*loyalty.Badge
	Disbursements        []DisbursementOutcome
	StartedAt            time.Time
	CompletedAt          *time.Time
	Error                error
	FailedStep           CascadeStep
}

// ══════════════════════════════════════════════════════════════════════════════
// ORCHESTRATOR IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// Orchestrator runs the complete reward cascade for a user.
// Runs for the same user are serialized by a per-user lock; runs for
// different users proceed concurrently.
type Orchestrator struct {
	// Dependencies
	store     loyalty.Store
	disburser *Disburser
	eventBus  shared.EventPublisher
	logger    *slog.Logger

	// Per-user serialization
	locks *userLocks

	// Configuration
	maxIterations int
	enableEvents  bool
}

// OrchestratorConfig contains configuration for the cascade orchestrator.
type OrchestratorConfig struct {
	// MaxIterations bounds the achievement fixpoint loop.
	// The loop also stops as soon as a pass unlocks nothing.
	MaxIterations int

	// EnableEvents toggles publishing of domain events after writes.
	EnableEvents bool
}

// DefaultOrchestratorConfig returns default configuration.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		MaxIterations: 10,
		EnableEvents:  true,
	}
}

// NewOrchestrator creates a new cascade orchestrator with all dependencies.
func NewOrchestrator(
	store loyalty.Store,
	disburser *Disburser,
	eventBus shared.EventPublisher,
	logger *slog.Logger,
	config OrchestratorConfig,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if config.MaxIterations <= 0 {
		config.MaxIterations = DefaultOrchestratorConfig().MaxIterations
	}

	return &Orchestrator{
		store:         store,
		disburser:     disburser,
		eventBus:      eventBus,
		logger:        logger.With("component", "cascade_orchestrator"),
		locks:         newUserLocks(),
		maxIterations: config.MaxIterations,
		enableEvents:  config.EnableEvents,
	}
}

// Execute runs the complete reward cascade for one user.
func (o *Orchestrator) Execute(ctx context.Context, input CascadeInput) (*CascadeResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	// Serialize cascades for the same user. The store's unique
	// constraints would catch races anyway, but serializing avoids
	// wasted work and keeps the fixpoint loop simple.
	unlock := o.locks.lock(input.UserID)
	defer unlock()

	state := &CascadeState{
		CurrentStep: StepLoadCatalog,
		Input:       input,
		StartedAt:   time.Now().UTC(),
	}

	o.logger.Info("cascade started",
		"user_id", input.UserID,
		"purchase_id", input.PurchaseID,
		"trigger", input.TriggerEvent,
	)

	// Step 1: Load catalog
	if err := o.stepLoadCatalog(ctx, state); err != nil {
		return nil, o.wrapError(state, err)
	}

	// Step 2: Evaluate achievements until no new unlock happens
	state.CurrentStep = StepEvaluateAchievements
	if err := o.stepEvaluateAchievements(ctx, state); err != nil {
		return nil, o.wrapError(state, err)
	}

	// Step 3: Refresh the points total after the achievement loop
	state.CurrentStep = StepRefreshPoints
	if err := o.stepRefreshSnapshot(ctx, state); err != nil {
		return nil, o.wrapError(state, err)
	}

	// Step 4: Evaluate badge tiers against the new points total.
	// Badge thresholds read only the points total and points never
	// decrease, so one pass after the fixpoint unlocks the same set
	// as re-checking after every achievement.
	state.CurrentStep = StepEvaluateBadges
	if err := o.stepEvaluateBadges(ctx, state); err != nil {
		return nil, o.wrapError(state, err)
	}

	// Step 5: Disburse cashback for newly unlocked badges.
	// A failed disbursement never rolls back the unlock; the record
	// stays unpaid and a later run retries it.
	state.CurrentStep = StepDisburseCashback
	o.stepDisburseCashback(ctx, state)

	// Step 6: Publish domain events
	// Non-critical - observers can rebuild from the store.
	state.CurrentStep = StepPublishEvents
	o.stepPublishEvents(state)

	// Complete
	state.CurrentStep = StepCascadeComplete
	now := time.Now().UTC()
	state.CompletedAt = &now

	result := &CascadeResult{
		UserID:               input.UserID,
		UnlockedAchievements: state.UnlockedAchievements,
		UnlockedBadges:       state.UnlockedBadges,
		Disbursements:        state.Disbursements,
		TotalPoints:          state.Snapshot.TotalPoints,
		ProcessedAt:          now,
	}

	o.logger.Info("cascade completed",
		"user_id", input.UserID,
		"new_achievements", len(result.UnlockedAchievements),
		"new_badges", len(result.UnlockedBadges),
		"total_points", result.TotalPoints,
	)

	return result, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CASCADE STEPS
// ══════════════════════════════════════════════════════════════════════════════

// stepLoadCatalog loads the active achievement and badge catalogs.
func (o *Orchestrator) stepLoadCatalog(ctx context.Context, state *CascadeState) error {
	achievements, err := o.store.ListActiveAchievements(ctx)
	if err != nil {
		state.FailedStep = StepLoadCatalog
		state.Error = fmt.Errorf("failed to load achievement catalog: %w", err)
		return state.Error
	}
	state.Achievements = achievements

	badges, err := o.store.ListActiveBadges(ctx)
	if err != nil {
		state.FailedStep = StepLoadCatalog
		state.Error = fmt.Errorf("failed to load badge catalog: %w", err)
		return state.Error
	}
	state.Badges = badges

	return nil
}

// stepEvaluateAchievements runs the rule evaluator against the user's
// counters and unlocks every qualifying achievement. The snapshot is
// refreshed after each unlock so that rules reading total_points would
// see the updated value, and the pass repeats until nothing new
// qualifies (fixpoint) or the iteration bound is hit.
func (o *Orchestrator) stepEvaluateAchievements(ctx context.Context, state *CascadeState) error {
	unlockedThisRun := make(map[shared.CatalogID]bool)

	for iteration := 0; iteration < o.maxIterations; iteration++ {
		snapshot, err := o.store.GetUserSnapshot(ctx, state.Input.UserID)
		if err != nil {
			state.FailedStep = StepEvaluateAchievements
			state.Error = fmt.Errorf("failed to load user snapshot: %w", err)
			return state.Error
		}
		state.Snapshot = snapshot

		qualified, violations := loyalty.Qualifying(state.Achievements, snapshot)
		for _, v := range violations {
			// Unknown rule types fail closed: skipped, never unlocked.
			o.logger.Warn("achievement rule skipped",
				"achievement_id", v.Achievement.ID,
				"achievement_name", v.Achievement.Name,
				"rule", v.Achievement.Rule.String(),
				"error", v.Err,
			)
		}

		newUnlocks := 0
		for _, a := range qualified {
			if unlockedThisRun[a.ID] {
				continue
			}

			created, err := o.store.TryUnlockAchievement(ctx, state.Input.UserID, a.ID)
			if err != nil {
				state.FailedStep = StepEvaluateAchievements
				state.Error = fmt.Errorf("failed to unlock achievement %d: %w", a.ID, err)
				return state.Error
			}
			unlockedThisRun[a.ID] = true
			if !created {
				// Already unlocked earlier (or by a concurrent run).
				continue
			}

			newUnlocks++
			state.UnlockedAchievements = append(state.UnlockedAchievements, a)

			// Refresh the points total after each unlock.
			snapshot, err = o.store.GetUserSnapshot(ctx, state.Input.UserID)
			if err != nil {
				state.FailedStep = StepEvaluateAchievements
				state.Error = fmt.Errorf("failed to refresh user snapshot: %w", err)
				return state.Error
			}
			state.Snapshot = snapshot

			o.logger.Info("achievement unlocked",
				"user_id", state.Input.UserID,
				"achievement_id", a.ID,
				"achievement_name", a.Name,
				"points", a.Points,
				"total_points", snapshot.TotalPoints,
			)
		}

		if newUnlocks == 0 {
			return nil
		}
	}

	return nil
}

// stepRefreshSnapshot reloads the user's counters from the store.
func (o *Orchestrator) stepRefreshSnapshot(ctx context.Context, state *CascadeState) error {
	snapshot, err := o.store.GetUserSnapshot(ctx, state.Input.UserID)
	if err != nil {
		state.FailedStep = StepRefreshPoints
		state.Error = fmt.Errorf("failed to refresh user snapshot: %w", err)
		return state.Error
	}
	state.Snapshot = snapshot
	return nil
}

// stepEvaluateBadges unlocks every badge whose threshold the user's
// points total now reaches, in ascending threshold order.
func (o *Orchestrator) stepEvaluateBadges(ctx context.Context, state *CascadeState) error {
	existing, err := o.store.ListUnlockedBadges(ctx, state.Input.UserID)
	if err != nil {
		state.FailedStep = StepEvaluateBadges
		state.Error = fmt.Errorf("failed to load unlocked badges: %w", err)
		return state.Error
	}

	unlocked := make(map[shared.CatalogID]bool, len(existing))
	for _, u := range existing {
		unlocked[u.BadgeID] = true
	}

	for _, b := range loyalty.NewlyQualified(state.Badges, unlocked, state.Snapshot.TotalPoints) {
		created, err := o.store.TryUnlockBadge(ctx, state.Input.UserID, b.ID)
		if err != nil {
			state.FailedStep = StepEvaluateBadges
			state.Error = fmt.Errorf("failed to unlock badge %d: %w", b.ID, err)
			return state.Error
		}
		if !created {
			// A concurrent run got there first; its cascade owns the cashback.
			continue
		}

		state.UnlockedBadges = append(state.UnlockedBadges, b)

		o.logger.Info("badge unlocked",
			"user_id", state.Input.UserID,
			"badge_id", b.ID,
			"badge_name", b.Name,
			"required_points", b.RequiredPoints,
		)
	}

	return nil
}

// stepDisburseCashback pays cashback for each newly unlocked badge.
// Failures are logged and recorded in the result but never abort the
// cascade: the unlock row stays with cashback_awarded = 0 and a retry
// run picks it up.
func (o *Orchestrator) stepDisburseCashback(ctx context.Context, state *CascadeState) {
	if o.disburser == nil {
		return
	}

	for _, b := range state.UnlockedBadges {
		outcome := o.disburser.Disburse(ctx, state.Input.UserID, b)
		state.Disbursements = append(state.Disbursements, outcome)

		if outcome.Status == DisbursementFailed {
			o.logger.Error("cashback disbursement failed",
				"user_id", state.Input.UserID,
				"badge_id", b.ID,
				"amount", b.Cashback,
				"error", outcome.Err,
			)
		}
	}
}

// stepPublishEvents publishes domain events for everything this run did.
func (o *Orchestrator) stepPublishEvents(state *CascadeState) {
	if !o.enableEvents || o.eventBus == nil {
		return
	}

	for _, a := range state.UnlockedAchievements {
		event := shared.NewAchievementUnlockedEvent(
			state.Input.UserID, a.ID, a.Name, a.Points, state.Snapshot.TotalPoints)
		if err := o.eventBus.Publish(event); err != nil {
			o.logger.Warn("failed to publish achievement event", "error", err)
		}
	}

	for _, b := range state.UnlockedBadges {
		event := shared.NewBadgeUnlockedEvent(
			state.Input.UserID, b.ID, b.Name, b.RequiredPoints, b.Cashback)
		if err := o.eventBus.Publish(event); err != nil {
			o.logger.Warn("failed to publish badge event", "error", err)
		}
	}

	for _, d := range state.Disbursements {
		var event shared.Event
		switch d.Status {
		case DisbursementPaid:
			event = shared.NewCashbackDisbursedEvent(state.Input.UserID, d.BadgeID, d.Amount, d.TransactionRef)
		case DisbursementFailed:
			reason := ""
			if d.Err != nil {
				reason = d.Err.Error()
			}
			event = shared.NewCashbackFailedEvent(state.Input.UserID, d.BadgeID, d.Amount, reason)
		default:
			continue
		}
		if err := o.eventBus.Publish(event); err != nil {
			o.logger.Warn("failed to publish cashback event", "error", err)
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// RETRY ENTRY POINT
// ══════════════════════════════════════════════════════════════════════════════

// RetryPendingCashback re-attempts disbursement for every badge the
// user has unlocked but not been paid for. Used after gateway outages.
func (o *Orchestrator) RetryPendingCashback(ctx context.Context, userID shared.UserID) ([]DisbursementOutcome, error) {
	if o.disburser == nil {
		return nil, nil
	}

	unlock := o.locks.lock(userID)
	defer unlock()

	badges, err := o.store.ListActiveBadges(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load badge catalog: %w", err)
	}
	byID := make(map[shared.CatalogID]*loyalty.Badge, len(badges))
	for _, b := range badges {
		byID[b.ID] = b
	}

	unlocks, err := o.store.ListUnlockedBadges(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load unlocked badges: %w", err)
	}

	var outcomes []DisbursementOutcome
	for _, u := range unlocks {
		if u.IsAwarded() {
			continue
		}
		badge, ok := byID[u.BadgeID]
		if !ok {
			// Badge removed from the catalog after unlock. Nothing to pay.
			continue
		}
		outcomes = append(outcomes, o.disburser.Disburse(ctx, userID, badge))
	}
	return outcomes, nil
}

// wrapError wraps an error with cascade context.
func (o *Orchestrator) wrapError(state *CascadeState, err error) error {
	return &CascadeError{
		Step:   state.FailedStep,
		UserID: state.Input.UserID,
		Cause:  err,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// CascadeError represents an error during the cascade flow.
type CascadeError struct {
	Step   CascadeStep
	UserID shared.UserID
	Cause  error
}

// Error implements the error interface.
func (e *CascadeError) Error() string {
	return fmt.Sprintf("cascade failed at step '%s' for user %s: %v", e.Step, e.UserID, e.Cause)
}

// Unwrap returns the underlying error.
func (e *CascadeError) Unwrap() error {
	return e.Cause
}

// ══════════════════════════════════════════════════════════════════════════════
// PER-USER LOCKS
// ══════════════════════════════════════════════════════════════════════════════

// userLocks hands out one mutex per user so that concurrent cascades
// for the same user run one at a time.
type userLocks struct {
	mu    sync.Mutex
	locks map[shared.UserID]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{
		locks: make(map[shared.UserID]*sync.Mutex),
	}
}

// lock acquires the mutex for the given user and returns its unlock func.
func (l *userLocks) lock(userID shared.UserID) func() {
	l.mu.Lock()
	m, ok := l.locks[userID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[userID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
