package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/vitos/yield_staking/internal/domain"
)

// Records are encoded big-endian: a format byte, then fixed 8-byte numeric
// fields, with identities and payloads as uint32 length-prefixed bytes.
const recordFormat byte = 1

var errCorruptRecord = errors.New("corrupt record")

type recordWriter struct {
	buf []byte
}

func newRecordWriter() *recordWriter {
	return &recordWriter{buf: []byte{recordFormat}}
}

func (w *recordWriter) u64(v uint64) { w.buf = binary.BigEndian.AppendUint64(w.buf, v) }

func (w *recordWriter) unix(t time.Time) { w.u64(uint64(t.Unix())) }

func (w *recordWriter) duration(d time.Duration) { w.u64(uint64(toSeconds(d))) }

func (w *recordWriter) bytes(b []byte) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *recordWriter) str(s string) { w.bytes([]byte(s)) }

func (w *recordWriter) flag(b bool) {
	if b {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
}

type recordReader struct {
	buf []byte
	err error
}

func newRecordReader(b []byte) *recordReader {
	r := &recordReader{buf: b}
	if len(b) == 0 || b[0] != recordFormat {
		r.err = fmt.Errorf("%w: unknown format", errCorruptRecord)
		return r
	}
	r.buf = b[1:]
	return r
}

func (r *recordReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.buf) < n {
		r.err = fmt.Errorf("%w: truncated", errCorruptRecord)
		return nil
	}
	b := r.buf[:n]
	r.buf = r.buf[n:]
	return b
}

func (r *recordReader) u64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (r *recordReader) unix() time.Time { return fromUnix(int64(r.u64())) }

func (r *recordReader) duration() time.Duration { return fromSeconds(int64(r.u64())) }

func (r *recordReader) bytes() []byte {
	n := r.take(4)
	if n == nil {
		return nil
	}
	size := binary.BigEndian.Uint32(n)
	if size == 0 {
		return nil
	}
	return append([]byte(nil), r.take(int(size))...)
}

func (r *recordReader) str() string { return string(r.bytes()) }

func (r *recordReader) flag() bool {
	b := r.take(1)
	return b != nil && b[0] == 1
}

func (r *recordReader) done() error {
	if r.err == nil && len(r.buf) != 0 {
		r.err = fmt.Errorf("%w: %d trailing bytes", errCorruptRecord, len(r.buf))
	}
	return r.err
}

func encodeLedger(l *domain.GlobalLedger) []byte {
	w := newRecordWriter()
	w.str(string(l.Product))
	w.u64(l.Version)
	w.u64(l.TotalStaked)
	w.u64(l.AccRewardPerShare)
	w.unix(l.LastFeeDepositTime)
	w.u64(l.InsuranceFund)
	w.str(string(l.Owner))
	w.str(string(l.Governance))
	w.duration(l.CooldownPeriod)
	w.duration(l.MinWithdrawInterval)
	w.duration(l.MinClaimDelay)
	w.u64(l.EarlyWithdrawalPenaltyBps)
	w.u64(l.InsuranceFeeBps)
	w.u64(l.UtilizationMultiplier)
	for _, pool := range l.Pools {
		w.duration(pool.LockupPeriod)
		w.u64(pool.APRMultiplier)
		w.u64(pool.FeeBps)
	}
	return w.buf
}

func decodeLedger(b []byte) (*domain.GlobalLedger, error) {
	r := newRecordReader(b)
	var l domain.GlobalLedger
	l.Product = domain.Product(r.str())
	l.Version = r.u64()
	l.TotalStaked = r.u64()
	l.AccRewardPerShare = r.u64()
	l.LastFeeDepositTime = r.unix()
	l.InsuranceFund = r.u64()
	l.Owner = domain.Identity(r.str())
	l.Governance = domain.Identity(r.str())
	l.CooldownPeriod = r.duration()
	l.MinWithdrawInterval = r.duration()
	l.MinClaimDelay = r.duration()
	l.EarlyWithdrawalPenaltyBps = r.u64()
	l.InsuranceFeeBps = r.u64()
	l.UtilizationMultiplier = r.u64()
	for i := range l.Pools {
		l.Pools[i].LockupPeriod = r.duration()
		l.Pools[i].APRMultiplier = r.u64()
		l.Pools[i].FeeBps = r.u64()
	}
	if err := r.done(); err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}
	return &l, nil
}

func encodePosition(p *domain.Position) []byte {
	w := newRecordWriter()
	w.str(string(p.Owner))
	w.str(string(p.Product))
	w.u64(p.StakedAmount)
	w.u64(p.RewardDebt)
	w.u64(p.PendingRewards)
	w.unix(p.StakeTimestamp)
	w.unix(p.LastWithdrawalTime)
	w.u64(uint64(p.Tier))
	w.u64(p.TrailingTradeVolume)
	return w.buf
}

func decodePosition(b []byte) (*domain.Position, error) {
	r := newRecordReader(b)
	var p domain.Position
	p.Owner = domain.Identity(r.str())
	p.Product = domain.Product(r.str())
	p.StakedAmount = r.u64()
	p.RewardDebt = r.u64()
	p.PendingRewards = r.u64()
	p.StakeTimestamp = r.unix()
	p.LastWithdrawalTime = r.unix()
	tier := r.u64()
	p.TrailingTradeVolume = r.u64()
	if err := r.done(); err != nil {
		return nil, fmt.Errorf("position: %w", err)
	}
	if tier >= domain.NumTiers {
		return nil, fmt.Errorf("position: %w: tier %d", errCorruptRecord, tier)
	}
	p.Tier = domain.Tier(tier)
	return &p, nil
}

func encodeProposal(p *domain.Proposal) []byte {
	w := newRecordWriter()
	w.str(p.ID)
	w.str(string(p.Proposer))
	w.bytes(p.Payload)
	w.unix(p.CreatedAt)
	w.u64(p.VoteWeight)
	w.flag(p.Executed)
	return w.buf
}

func decodeProposal(b []byte) (*domain.Proposal, error) {
	r := newRecordReader(b)
	var p domain.Proposal
	p.ID = r.str()
	p.Proposer = domain.Identity(r.str())
	p.Payload = r.bytes()
	p.CreatedAt = r.unix()
	p.VoteWeight = r.u64()
	p.Executed = r.flag()
	if err := r.done(); err != nil {
		return nil, fmt.Errorf("proposal: %w", err)
	}
	return &p, nil
}
