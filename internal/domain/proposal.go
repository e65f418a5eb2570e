package domain

import "time"

// Proposal is a stake-weighted governance proposal. Execution happens elsewhere.
type Proposal struct {
	ID         string    `json:"id"`
	Proposer   Identity  `json:"proposer"`
	Payload    []byte    `json:"payload"`
	CreatedAt  time.Time `json:"created_at"`
	VoteWeight uint64    `json:"vote_weight"`
	Executed   bool      `json:"executed"`
}
