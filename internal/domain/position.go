package domain

import "time"

// PositionKey identifies a position: one per participant per product.
type PositionKey struct {
	Owner   Identity `json:"owner"`
	Product Product  `json:"product"`
}

// Position is a participant's stake in one product.
type Position struct {
	Owner   Identity `json:"owner"`
	Product Product  `json:"product"`

	StakedAmount   uint64 `json:"staked_amount"`
	RewardDebt     uint64 `json:"reward_debt"`
	PendingRewards uint64 `json:"pending_rewards"`

	StakeTimestamp     time.Time `json:"stake_timestamp"`
	LastWithdrawalTime time.Time `json:"last_withdrawal_time"`

	Tier                Tier   `json:"tier"`
	TrailingTradeVolume uint64 `json:"trailing_trade_volume"`
}

func (p *Position) Key() PositionKey {
	return PositionKey{Owner: p.Owner, Product: p.Product}
}
