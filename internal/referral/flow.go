package referral

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Eligibility is the membership precondition checked before any ledger work.
type Eligibility interface {
	IsEligible(ctx context.Context, userID int64) bool
}

// StartResult is what the transport needs to render a /start reply.
type StartResult struct {
	Blocked      bool
	Registration RegistrationOutcome
	Progress     Progress
}

// StartFlow composes the gate and the engine for one inbound start event.
type StartFlow struct {
	gate       Eligibility
	engine     *Engine
	dispatcher Dispatcher
	logger     *zap.Logger
}

func NewStartFlow(gate Eligibility, engine *Engine, dispatcher Dispatcher, logger *zap.Logger) (*StartFlow, error) {
	if gate == nil || engine == nil || dispatcher == nil {
		return nil, errors.New("referral: gate, engine and dispatcher are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StartFlow{
		gate:       gate,
		engine:     engine,
		dispatcher: dispatcher,
		logger:     logger.Named("start"),
	}, nil
}

// Start handles a /start event. A blocked user causes no ledger mutation.
func (f *StartFlow) Start(ctx context.Context, userID int64, token string) (StartResult, error) {
	if !f.gate.IsEligible(ctx, userID) {
		f.logger.Debug("user blocked by gate", zap.Int64("user_id", userID))
		return StartResult{Blocked: true, Progress: Progress{Threshold: f.engine.Threshold()}}, nil
	}

	referrerID, _ := ParseToken(token)
	reg, err := f.engine.Register(ctx, userID, referrerID)
	if err != nil {
		return StartResult{Registration: reg}, err
	}
	if reg.Attribution != nil {
		Dispatch(ctx, f.dispatcher, reg.Attribution.Notifications())
	}

	progress, err := f.engine.GetProgress(ctx, userID)
	if err != nil {
		return StartResult{Registration: reg}, err
	}
	return StartResult{Registration: reg, Progress: progress}, nil
}

// CheckJoin re-runs the gate for an explicit "I've joined" confirmation.
func (f *StartFlow) CheckJoin(ctx context.Context, userID int64) bool {
	return f.gate.IsEligible(ctx, userID)
}

// CheckReferrals re-reads progress. It never sends notifications.
func (f *StartFlow) CheckReferrals(ctx context.Context, userID int64) (Progress, error) {
	return f.engine.GetProgress(ctx, userID)
}
