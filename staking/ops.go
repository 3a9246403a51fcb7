// Copyright (c) 2026 The Findora Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staking

import (
	"fmt"
	"math/big"

	"github.com/findoranetwork/stakingd/fra"
	"github.com/findoranetwork/stakingd/staking/cosig"
)

// RejectKind classifies operation rejections. A rejected operation never
// aborts its block; only Fatal errors do.
type RejectKind uint8

const (
	// InvalidOp is a malformed or unauthorized operation.
	InvalidOp RejectKind = iota
	// PreconditionFailed is a well-formed operation applied against
	// incompatible state.
	PreconditionFailed
	// Insufficient is raised when the coinbase cannot cover a payment.
	Insufficient
)

func (k RejectKind) String() string {
	switch k {
	case InvalidOp:
		return "invalid-op"
	case PreconditionFailed:
		return "precondition-failed"
	case Insufficient:
		return "insufficient"
	}
	return "unknown"
}

// Reject is the outcome of a rejected operation.
type Reject struct {
	Kind   RejectKind
	Reason string
}

func (r *Reject) Error() string {
	return fmt.Sprintf("%s: %s", r.Kind, r.Reason)
}

func rejectf(kind RejectKind, format string, args ...any) *Reject {
	return &Reject{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// AsReject extracts the reject outcome from an error returned by Apply.
// Errors that are not rejects are fatal: the block must not commit.
func AsReject(err error) (*Reject, bool) {
	r, ok := err.(*Reject)
	return r, ok
}

// Operation is one validated staking operation of a block. The wire format is
// the ledger's responsibility; the core consumes semantic fields only.
type Operation interface {
	isOperation()
}

// DelegationOp locks amount of the delegator's FRA on a validator. The two
// transfer refs are adjacency constraints enforced by the ledger: the
// containing transaction carries a fee transfer and a plaintext self-transfer
// whose single UTXO output carries the amount.
type DelegationOp struct {
	Delegator       fra.Address
	Validator       fra.PubKey
	Amount          *big.Int
	FeeTransferRef  fra.Bytes32
	SelfTransferRef fra.Bytes32
}

// UnDelegationOp releases the full bond. Partial undelegation is not
// supported.
type UnDelegationOp struct {
	Delegator fra.Address
	Validator fra.PubKey
}

// ClaimOp moves up to Amount (all when nil) of accrued rewards into a payout
// intent.
type ClaimOp struct {
	Delegator fra.Address
	Validator fra.PubKey
	Amount    *big.Int
}

// ValidatorPatch is one entry of a ValidatorUpdate diff.
type ValidatorPatch struct {
	PubKey      fra.PubKey
	RewardsAddr fra.Address
	Commission  fra.Ratio
	Memo        string
	Remove      bool
}

// ValidatorUpdateOp adds, removes or modifies validators. It is gated by the
// weighted multi-signature rule, except at genesis bootstrap, or when every
// patched validator co-signed its own metadata change.
type ValidatorUpdateOp struct {
	Patches []ValidatorPatch
	Nonce   [16]byte
	Signers []cosig.Signer
}

// GovernanceOp triggers slashing of a validator for an attributed fault.
type GovernanceOp struct {
	Target      fra.Address
	Fault       FaultKind
	Height      uint64
	EvidenceRef fra.Bytes32
	Nonce       [16]byte
	Signers     []cosig.Signer
}

// DistEntry is one scheduled coinbase credit.
type DistEntry struct {
	Addr          fra.Address
	Amount        *big.Int
	ReleaseHeight uint64
}

// FraDistributionOp schedules coinbase payouts. The entries' total funds the
// coinbase when the operation applies; each entry is queued as a payout intent
// at its release height; nothing is minted.
type FraDistributionOp struct {
	Entries []DistEntry
	Nonce   [16]byte
	Signers []cosig.Signer
}

func (*DelegationOp) isOperation()      {}
func (*UnDelegationOp) isOperation()    {}
func (*ClaimOp) isOperation()           {}
func (*ValidatorUpdateOp) isOperation() {}
func (*GovernanceOp) isOperation()      {}
func (*FraDistributionOp) isOperation() {}
