package domain

import "time"

type EventKind string

const (
	EventInitialized       EventKind = "initialized"
	EventStaked            EventKind = "staked"
	EventUnstaked          EventKind = "unstaked"
	EventFeeDeposited      EventKind = "fee_deposited"
	EventClaimed           EventKind = "claimed"
	EventCompounded        EventKind = "compounded"
	EventParametersUpdated EventKind = "parameters_updated"
	EventTradeVolumeSet    EventKind = "trade_volume_set"
	EventProposalSubmitted EventKind = "proposal_submitted"
	EventVoted             EventKind = "voted"
)

// Event describes one committed operation together with the ledger totals
// after it.
type Event struct {
	Kind    EventKind `json:"kind"`
	Product Product   `json:"product,omitempty"`
	Subject Identity  `json:"subject,omitempty"`
	Amount  uint64    `json:"amount"`
	Penalty uint64    `json:"penalty,omitempty"`

	TotalStaked       uint64 `json:"total_staked"`
	AccRewardPerShare uint64 `json:"acc_reward_per_share"`
	InsuranceFund     uint64 `json:"insurance_fund"`

	ProposalID string    `json:"proposal_id,omitempty"`
	At         time.Time `json:"at"`
}
