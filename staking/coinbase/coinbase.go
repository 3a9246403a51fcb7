// Copyright (c) 2026 The Findora Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package coinbase

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/findoranetwork/stakingd/fra"
	"github.com/findoranetwork/stakingd/ledger"
	"github.com/findoranetwork/stakingd/log"
	"github.com/findoranetwork/stakingd/metrics"
)

var (
	logger = log.WithContext("pkg", "coinbase")

	metricPayouts = metrics.LazyLoadCounterVec("coinbase_payouts_total", []string{"reason"})
	metricQueued  = metrics.LazyLoadGauge("coinbase_queued_intents")
	metricStalled = metrics.LazyLoadGauge("coinbase_stalled")
)

// Reason classifies a payout intent.
type Reason uint8

const (
	ReasonBlockReward Reason = iota
	ReasonProposerReward
	ReasonCommission
	ReasonFraDistribution
	ReasonPrincipal
)

func (r Reason) String() string {
	switch r {
	case ReasonBlockReward:
		return "block-reward"
	case ReasonProposerReward:
		return "proposer-reward"
	case ReasonCommission:
		return "commission"
	case ReasonFraDistribution:
		return "fra-distribution"
	case ReasonPrincipal:
		return "principal"
	}
	return "unknown"
}

// Intent is a pending credit from the coinbase to a ledger address.
type Intent struct {
	Target        fra.Address
	Amount        *big.Int
	Reason        Reason
	CreatedHeight uint64
}

// Copy returns a deep copy of the intent.
func (i *Intent) Copy() *Intent {
	cpy := *i
	cpy.Amount = new(big.Int).Set(i.Amount)
	return &cpy
}

// Coinbase is the public payout account. It never mints: payouts only happen
// while the balance covers them, strictly in FIFO intent order.
type Coinbase struct {
	balance *big.Int
	queue   []*Intent
	pending map[fra.Address]int
	stalled bool
}

// New creates a coinbase with a zero balance.
func New() *Coinbase {
	return &Coinbase{
		balance: new(big.Int),
		pending: make(map[fra.Address]int),
	}
}

// Balance returns a copy of the current balance.
func (c *Coinbase) Balance() *big.Int {
	return new(big.Int).Set(c.balance)
}

// Stalled reports whether the head intent could not be paid at the last drain.
func (c *Coinbase) Stalled() bool {
	return c.stalled
}

// QueueLen returns the number of queued intents.
func (c *Coinbase) QueueLen() int {
	return len(c.queue)
}

// Queue returns a deep copy of the queued intents in order.
func (c *Coinbase) Queue() []*Intent {
	queue := make([]*Intent, len(c.queue))
	for i, intent := range c.queue {
		queue[i] = intent.Copy()
	}
	return queue
}

// QueuedTotal returns the summed amount of all queued intents.
func (c *Coinbase) QueuedTotal() *big.Int {
	total := new(big.Int)
	for _, intent := range c.queue {
		total.Add(total, intent.Amount)
	}
	return total
}

// HasPendingFor reports whether any unpaid intent targets addr. Unbonding
// settlement is deferred while this holds and the queue is stalled.
func (c *Coinbase) HasPendingFor(addr fra.Address) bool {
	return c.pending[addr] > 0
}

// Credit adds inflow (fees, distribution funding, manual top-ups) to the
// balance.
func (c *Coinbase) Credit(amount *big.Int) error {
	if amount.Sign() < 0 {
		return errors.New("negative credit")
	}
	c.balance.Add(c.balance, amount)
	return nil
}

// Enqueue appends a payout intent. Zero-amount intents are dropped.
func (c *Coinbase) Enqueue(target fra.Address, amount *big.Int, reason Reason, height uint64) {
	if amount.Sign() <= 0 {
		return
	}
	c.queue = append(c.queue, &Intent{
		Target:        target,
		Amount:        new(big.Int).Set(amount),
		Reason:        reason,
		CreatedHeight: height,
	})
	c.pending[target]++
}

// Drain pays queued intents in order while the balance suffices, applying
// each through the ledger payer. It stops at the first intent that does not
// fit and raises the stalled flag; that intent stays at the head for the next
// block. The total paid out is returned.
func (c *Coinbase) Drain(payer ledger.Payer) (*big.Int, error) {
	paid := new(big.Int)
	for len(c.queue) > 0 {
		head := c.queue[0]
		if c.balance.Cmp(head.Amount) < 0 {
			if !c.stalled {
				logger.Warn("coinbase stalled", "target", head.Target, "amount", head.Amount, "balance", c.balance)
			}
			c.stalled = true
			metricStalled().Set(1)
			metricQueued().Set(int64(len(c.queue)))
			return paid, nil
		}
		if err := payer.ApplyPayout(head.Target, head.Amount); err != nil {
			return nil, errors.Wrap(err, "apply payout")
		}
		c.balance.Sub(c.balance, head.Amount)
		paid.Add(paid, head.Amount)
		c.queue = c.queue[1:]
		c.pending[head.Target]--
		if c.pending[head.Target] == 0 {
			delete(c.pending, head.Target)
		}
		metricPayouts().AddWithLabel(1, map[string]string{"reason": head.Reason.String()})
	}
	c.stalled = false
	metricStalled().Set(0)
	metricQueued().Set(0)
	return paid, nil
}

// Restore rebuilds the coinbase from snapshot data.
func Restore(balance *big.Int, queue []*Intent, stalled bool) *Coinbase {
	c := New()
	c.balance.Set(balance)
	for _, intent := range queue {
		c.queue = append(c.queue, intent.Copy())
		c.pending[intent.Target]++
	}
	c.stalled = stalled
	return c
}
