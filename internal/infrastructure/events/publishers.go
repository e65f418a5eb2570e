// Package events fans committed-operation notifications out to observers.
package events

import (
	"github.com/vitos/yield_staking/internal/domain"
	"go.uber.org/zap"
)

// Multi publishes every event to each publisher in order.
type Multi []domain.EventPublisher

func (m Multi) Publish(evt domain.Event) {
	for _, p := range m {
		p.Publish(evt)
	}
}

// LogPublisher writes events to the structured log at debug level.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(evt domain.Event) {
	p.logger.Debug("Ledger event",
		zap.String("kind", string(evt.Kind)),
		zap.String("product", string(evt.Product)),
		zap.String("subject", string(evt.Subject)),
		zap.Uint64("amount", evt.Amount),
		zap.Uint64("total_staked", evt.TotalStaked),
		zap.Uint64("acc_reward_per_share", evt.AccRewardPerShare),
		zap.Time("at", evt.At))
}
