package gate

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Status is a user's standing in a channel as reported by the oracle.
type Status string

const (
	StatusCreator       Status = "creator"
	StatusAdministrator Status = "administrator"
	StatusMember        Status = "member"
	StatusOther         Status = "other"
)

// Joined reports whether the status counts as channel membership.
func (s Status) Joined() bool {
	switch s {
	case StatusCreator, StatusAdministrator, StatusMember:
		return true
	default:
		return false
	}
}

// Oracle answers membership questions for a single channel.
type Oracle interface {
	CheckMembership(ctx context.Context, channelID, userID int64) (Status, error)
}

// Recorder receives gate decisions for metrics.
type Recorder interface {
	GateDecision(allowed bool)
	OracleError()
}

// Gate checks a user against every mandatory channel. Results are never
// cached.
type Gate struct {
	oracle   Oracle
	channels []int64
	recorder Recorder
	logger   *zap.Logger
}

func New(oracle Oracle, channels []int64, recorder Recorder, logger *zap.Logger) (*Gate, error) {
	if oracle == nil {
		return nil, errors.New("gate: oracle is required")
	}
	if len(channels) == 0 {
		return nil, errors.New("gate: at least one mandatory channel is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		oracle:   oracle,
		channels: append([]int64(nil), channels...),
		recorder: recorder,
		logger:   logger.Named("gate"),
	}, nil
}

// Channels returns the mandatory channels in configured order.
func (g *Gate) Channels() []int64 {
	return append([]int64(nil), g.channels...)
}

// IsEligible fails closed: an oracle error counts as not joined.
func (g *Gate) IsEligible(ctx context.Context, userID int64) bool {
	allowed := g.check(ctx, userID)
	if g.recorder != nil {
		g.recorder.GateDecision(allowed)
	}
	return allowed
}

func (g *Gate) check(ctx context.Context, userID int64) bool {
	for _, channelID := range g.channels {
		status, err := g.oracle.CheckMembership(ctx, channelID, userID)
		if err != nil {
			g.logger.Warn("membership check failed",
				zap.Int64("channel_id", channelID),
				zap.Int64("user_id", userID),
				zap.Error(err),
			)
			if g.recorder != nil {
				g.recorder.OracleError()
			}
			return false
		}
		if !status.Joined() {
			g.logger.Debug("user has not joined channel",
				zap.Int64("channel_id", channelID),
				zap.Int64("user_id", userID),
				zap.String("status", string(status)),
			)
			return false
		}
	}
	return true
}
