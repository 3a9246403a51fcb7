// Copyright (c) 2026 The Findora Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package ledger

import (
	"math/big"
	"sync"

	"github.com/pkg/errors"

	"github.com/findoranetwork/stakingd/fra"
)

// Payer applies privileged plaintext transfers authorized by the staking
// core. The UTXO ledger is an external collaborator; the core only ever sees
// this surface of it.
type Payer interface {
	// ApplyPayout moves amount from the coinbase account to target.
	// The amount must match the authorizing intent exactly.
	ApplyPayout(target fra.Address, amount *big.Int) error
}

// LockChecker is the query surface the ledger uses to reject outgoing
// transfers from lock-restricted accounts.
type LockChecker interface {
	AccountIsLockRestricted(addr fra.Address) bool
}

// Payout is one recorded transfer, in application order.
type Payout struct {
	Target fra.Address
	Amount *big.Int
}

// Mem is an in-memory ledger used by tests and the embedded node shell. It
// records balances credited via payouts, in order.
type Mem struct {
	mu       sync.Mutex
	balances map[fra.Address]*big.Int
	payouts  []Payout
}

// NewMem creates an empty in-memory ledger.
func NewMem() *Mem {
	return &Mem{balances: make(map[fra.Address]*big.Int)}
}

// ApplyPayout implements Payer.
func (m *Mem) ApplyPayout(target fra.Address, amount *big.Int) error {
	if amount.Sign() <= 0 {
		return errors.New("non-positive payout amount")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	bal, ok := m.balances[target]
	if !ok {
		bal = new(big.Int)
		m.balances[target] = bal
	}
	bal.Add(bal, amount)
	m.payouts = append(m.payouts, Payout{Target: target, Amount: new(big.Int).Set(amount)})
	return nil
}

// BalanceOf returns the credited balance of addr.
func (m *Mem) BalanceOf(addr fra.Address) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if bal, ok := m.balances[addr]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

// Payouts returns a copy of the applied payouts in order.
func (m *Mem) Payouts() []Payout {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Payout, len(m.payouts))
	for i, p := range m.payouts {
		out[i] = Payout{Target: p.Target, Amount: new(big.Int).Set(p.Amount)}
	}
	return out
}

// PayoutCount returns the number of payouts applied.
func (m *Mem) PayoutCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.payouts)
}
