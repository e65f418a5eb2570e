package usecase

import (
	"time"

	"github.com/vitos/yield_staking/internal/domain"
)

type nopPublisher struct{}

func (nopPublisher) Publish(domain.Event) {}

func newEvent(kind domain.EventKind, ledger *domain.GlobalLedger, subject domain.Identity, amount, penalty uint64, at time.Time) domain.Event {
	evt := domain.Event{
		Kind:    kind,
		Subject: subject,
		Amount:  amount,
		Penalty: penalty,
		At:      at,
	}
	if ledger != nil {
		evt.Product = ledger.Product
		evt.TotalStaked = ledger.TotalStaked
		evt.AccRewardPerShare = ledger.AccRewardPerShare
		evt.InsuranceFund = ledger.InsuranceFund
	}
	return evt
}
