// Copyright (c) 2026 The Findora Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staking

import (
	"bytes"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/findoranetwork/stakingd/fra"
	"github.com/findoranetwork/stakingd/staking/coinbase"
	"github.com/findoranetwork/stakingd/staking/cosig"
	"github.com/findoranetwork/stakingd/staking/delegation"
	"github.com/findoranetwork/stakingd/staking/validation"
)

// GenesisValidator is one member of the configured initial set.
type GenesisValidator struct {
	PubKey      fra.PubKey
	RewardsAddr fra.Address
	Commission  fra.Ratio
	Memo        string
	Power       uint64
}

// Evidence is a consensus-signed fault report delivered with begin-block.
type Evidence struct {
	Validator fra.Address
	Kind      FaultKind
	Height    uint64
}

// InitChain seeds the registry from the genesis set and publishes the initial
// powers to the consensus driver.
func (s *Staking) InitChain(height uint64, vals []GenesisValidator) ([]PowerEntry, error) {
	if len(s.published) != 0 {
		return nil, errors.New("chain already initialized")
	}
	for _, v := range vals {
		if err := s.reg.Seed(v.PubKey, v.RewardsAddr, v.Commission, v.Memo, v.Power, height); err != nil {
			return nil, errors.Wrap(err, "seed genesis validator")
		}
	}
	s.curHeight = height
	s.published = s.computeActive()
	if err := s.checkTotalPower(s.published); err != nil {
		return nil, err
	}
	logger.Info("chain initialized", "height", height, "validators", len(s.published))
	out := make([]PowerEntry, len(s.published))
	copy(out, s.published)
	return out, nil
}

// BeginBlock opens the block window: it records presence for liveness
// tracking and applies auto-slashing from consensus evidence.
func (s *Staking) BeginBlock(height uint64, proposer fra.Address, lastCommitSigners []fra.Address, evidence []Evidence) error {
	if s.inBlock {
		return errors.New("previous block window still open")
	}
	if height != s.curHeight+1 {
		return errors.Errorf("non-contiguous block height %d, expected %d", height, s.curHeight+1)
	}
	s.inBlock = true

	s.blockProposer = fra.PubKey{}
	if entry := s.reg.GetByAddr(proposer); entry != nil {
		s.blockProposer = entry.PubKey
	}

	s.reg.Tick(height)

	// presence bookkeeping for the in-force set
	signed := make(map[fra.Address]struct{}, len(lastCommitSigners))
	for _, addr := range lastCommitSigners {
		signed[addr] = struct{}{}
	}
	for _, pub := range s.published {
		entry := s.reg.Get(pub.PubKey)
		if entry == nil || entry.Sanction != validation.SanctionNone {
			continue
		}
		if _, ok := signed[entry.PubKey.Address()]; ok {
			entry.MissedBlocks = 0
			continue
		}
		entry.MissedBlocks++
		if entry.MissedBlocks > fra.LivenessWindow {
			entry.MissedBlocks = 0
			if err := s.slash(entry, FaultOffline, height); err != nil {
				return errors.Wrap(err, "liveness slash")
			}
		}
	}

	// consensus-signed evidence needs no co-signatures
	for _, ev := range evidence {
		entry := s.reg.GetByAddr(ev.Validator)
		if entry == nil {
			logger.Warn("evidence against unknown validator", "addr", ev.Validator, "kind", ev.Kind)
			continue
		}
		if err := s.slash(entry, ev.Kind, height); err != nil {
			if _, ok := AsReject(err); ok {
				logger.Warn("evidence dropped", "addr", ev.Validator, "err", err)
				continue
			}
			return errors.Wrap(err, "evidence slash")
		}
	}
	return nil
}

// Apply executes one validated operation in transaction order. A returned
// Reject leaves the block intact; any other error is fatal.
func (s *Staking) Apply(op Operation) error {
	if !s.inBlock {
		return errors.New("operation outside block window")
	}
	var err error
	switch op := op.(type) {
	case *DelegationOp:
		err = s.applyDelegation(op)
	case *UnDelegationOp:
		err = s.applyUnDelegation(op)
	case *ClaimOp:
		err = s.applyClaim(op)
	case *ValidatorUpdateOp:
		err = s.applyValidatorUpdate(op)
	case *GovernanceOp:
		err = s.applyGovernance(op)
	case *FraDistributionOp:
		err = s.applyFraDistribution(op)
	default:
		return errors.Errorf("unsupported operation %T", op)
	}
	if err == nil {
		metricOpApplied().AddWithLabel(1, map[string]string{"op": opName(op)})
	} else if r, ok := AsReject(err); ok {
		metricRejects().AddWithLabel(1, map[string]string{"kind": r.Kind.String()})
	}
	return err
}

// EndBlock closes the window: ticks unbonding, accrues rewards, credits fees
// and released distributions, drains the payout queue, and returns the
// validator diff the consensus driver applies at height+2.
func (s *Staking) EndBlock(height uint64) ([]PowerEntry, error) {
	if !s.inBlock {
		return nil, errors.New("end-block outside block window")
	}
	if height != s.curHeight+1 {
		return nil, errors.Errorf("end-block height mismatch %d", height)
	}

	s.tickUnbonding(height)

	minted, err := s.engine.Settle(height, s.blockProposer, s.rewardCandidates())
	if err != nil {
		return nil, errors.Wrap(err, "reward settlement")
	}
	metricMinted().Add(clampInt64(minted))

	if s.feesPending.Sign() > 0 {
		if err := s.cb.Credit(s.feesPending); err != nil {
			return nil, err
		}
		s.feesPending = new(big.Int)
	}

	if err := s.releaseDistributions(height); err != nil {
		return nil, err
	}

	if _, err := s.cb.Drain(s.payer); err != nil {
		return nil, errors.Wrap(err, "coinbase drain")
	}

	next := s.computeActive()
	if err := s.checkTotalPower(next); err != nil {
		return nil, err
	}
	diff := diffSets(s.published, next)
	s.published = next
	s.curHeight = height
	s.inBlock = false

	metricHeight().Set(int64(height))
	metricActive().Set(int64(len(next)))
	metricCoinbase().Set(clampInt64(s.cb.Balance()))

	if len(diff) > 0 {
		logger.Debug("validator diff published", "height", height, "changes", len(diff))
	}
	return diff, nil
}

//
// operation appliers
//

func (s *Staking) applyDelegation(op *DelegationOp) error {
	if op.Amount == nil || op.Amount.Sign() <= 0 || !fitsAmount(op.Amount) {
		return rejectf(InvalidOp, "invalid delegation amount")
	}
	entry := s.reg.Get(op.Validator)
	if entry == nil {
		return rejectf(InvalidOp, "unknown validator %s", op.Validator)
	}
	if entry.Sanction == validation.SanctionTombstoned {
		return rejectf(InvalidOp, "validator %s is tombstoned", op.Validator)
	}
	if s.del.HasUnbonding(op.Delegator) {
		return rejectf(PreconditionFailed, "account %s is unbonding", op.Delegator)
	}
	total := new(big.Int)
	for _, pub := range s.published {
		total.Add(total, new(big.Int).SetUint64(pub.Power))
	}
	if total.Add(total, op.Amount); total.Cmp(big.NewInt(fra.MaxTotalPower)) > 0 {
		return rejectf(InvalidOp, "total power overflow")
	}
	if err := s.del.Bond(op.Delegator, op.Validator, op.Amount, s.curHeight+1); err != nil {
		return rejectf(InvalidOp, "%s", err)
	}
	// the self-transfer routes the bonded UTXO to the coinbase, which pays
	// the principal back at settlement
	return s.cb.Credit(op.Amount)
}

func (s *Staking) applyUnDelegation(op *UnDelegationOp) error {
	key := delegation.Key{Delegator: op.Delegator, Validator: op.Validator}
	row := s.del.Get(key)
	if row == nil || row.State != delegation.StateBonded {
		return rejectf(PreconditionFailed, "no bonded delegation for %s", op.Delegator)
	}
	// a validator undelegating its own bond is exiting: the bond stops voting
	// at once, so the validator leaves the set in this block's diff, and the
	// release itself still waits out the full unbonding period
	height := s.curHeight + 1
	if err := s.del.Unbond(key, height, height+fra.UnbondBlocks); err != nil {
		return rejectf(PreconditionFailed, "%s", err)
	}
	return nil
}

func (s *Staking) applyClaim(op *ClaimOp) error {
	if op.Amount != nil && (op.Amount.Sign() <= 0 || !fitsAmount(op.Amount)) {
		return rejectf(InvalidOp, "invalid claim amount")
	}
	key := delegation.Key{Delegator: op.Delegator, Validator: op.Validator}
	row := s.del.Get(key)
	entry := s.reg.Get(op.Validator)
	if row == nil && (entry == nil || entry.RewardsAddr != op.Delegator) {
		return rejectf(InvalidOp, "no delegation for %s", op.Delegator)
	}

	remaining := op.Amount // nil means everything
	claimed := new(big.Int)
	if row != nil && row.AccruedReward.Sign() > 0 {
		got, err := s.del.Claim(key, remaining)
		if err != nil {
			return rejectf(PreconditionFailed, "%s", err)
		}
		claimed.Add(claimed, got)
		if remaining != nil {
			remaining = new(big.Int).Sub(remaining, got)
		}
	}

	// the validator's own claim also drains its accumulated commission
	if entry != nil && entry.RewardsAddr == op.Delegator && entry.AccumulatedRewards.Sign() > 0 {
		if remaining == nil || remaining.Sign() > 0 {
			cut := new(big.Int).Set(entry.AccumulatedRewards)
			if remaining != nil && remaining.Cmp(cut) < 0 {
				cut.Set(remaining)
			}
			entry.AccumulatedRewards.Sub(entry.AccumulatedRewards, cut)
			claimed.Add(claimed, cut)
		}
	}

	if claimed.Sign() == 0 {
		return rejectf(PreconditionFailed, "nothing to claim")
	}
	s.cb.Enqueue(op.Delegator, claimed, coinbase.ReasonBlockReward, s.curHeight+1)
	return nil
}

func (s *Staking) applyValidatorUpdate(op *ValidatorUpdateOp) error {
	if len(op.Patches) == 0 {
		return rejectf(InvalidOp, "empty validator update")
	}
	body, err := rlp.EncodeToBytes(op.Patches)
	if err != nil {
		return errors.Wrap(err, "encode update body")
	}
	if err := s.checkGate(body, op.Nonce, op.Signers, s.selfSigned(op, body)); err != nil {
		return err
	}
	for _, patch := range op.Patches {
		if patch.Remove {
			entry := s.reg.Get(patch.PubKey)
			if entry == nil {
				return rejectf(InvalidOp, "unknown validator %s", patch.PubKey)
			}
			if len(s.del.RowsOf(patch.PubKey)) > 0 {
				return rejectf(PreconditionFailed, "validator %s has live delegations", patch.PubKey)
			}
			s.reg.Remove(patch.PubKey)
			continue
		}
		if err := s.reg.Upsert(patch.PubKey, patch.RewardsAddr, patch.Commission, patch.Memo); err != nil {
			return rejectf(InvalidOp, "%s", err)
		}
	}
	return nil
}

func (s *Staking) applyGovernance(op *GovernanceOp) error {
	body, err := rlp.EncodeToBytes(&governanceBody{
		Target:      op.Target,
		Fault:       op.Fault,
		Height:      op.Height,
		EvidenceRef: op.EvidenceRef,
	})
	if err != nil {
		return errors.Wrap(err, "encode governance body")
	}
	if err := s.checkGate(body, op.Nonce, op.Signers, false); err != nil {
		return err
	}
	entry := s.reg.GetByAddr(op.Target)
	if entry == nil {
		return rejectf(InvalidOp, "unknown validator %s", op.Target)
	}
	return s.slash(entry, op.Fault, s.curHeight+1)
}

func (s *Staking) applyFraDistribution(op *FraDistributionOp) error {
	if len(op.Entries) == 0 {
		return rejectf(InvalidOp, "empty distribution")
	}
	for _, entry := range op.Entries {
		if entry.Amount == nil || entry.Amount.Sign() <= 0 || !fitsAmount(entry.Amount) {
			return rejectf(InvalidOp, "invalid distribution amount for %s", entry.Addr)
		}
	}
	body, err := rlp.EncodeToBytes(op.Entries)
	if err != nil {
		return errors.Wrap(err, "encode distribution body")
	}
	if err := s.checkGate(body, op.Nonce, op.Signers, false); err != nil {
		return err
	}
	// the distribution funds the coinbase up front; the scheduled credits
	// only become payout intents at their release heights
	total := new(big.Int)
	for _, entry := range op.Entries {
		total.Add(total, entry.Amount)
		s.scheduled = append(s.scheduled, DistEntry{
			Addr:          entry.Addr,
			Amount:        new(big.Int).Set(entry.Amount),
			ReleaseHeight: entry.ReleaseHeight,
		})
	}
	sortDistEntries(s.scheduled)
	return s.cb.Credit(total)
}

// checkGate enforces the weighted multi-signature rule. An empty signer set
// passes only at genesis bootstrap, before any set has been published.
func (s *Staking) checkGate(body []byte, nonce [16]byte, signers []cosig.Signer, selfSigned bool) error {
	if len(s.published) == 0 && len(signers) == 0 {
		return nil
	}
	if selfSigned {
		return nil
	}
	rule := cosig.NewRule(fra.SigThreshold, s.publishedPowers())
	if err := rule.Check(nonce, body, signers); err != nil {
		return rejectf(InvalidOp, "%s", err)
	}
	return nil
}

// selfSigned reports whether every patch only touches metadata of a validator
// that co-signed the operation itself. Such updates bypass the threshold.
func (s *Staking) selfSigned(op *ValidatorUpdateOp, body []byte) bool {
	msg := cosig.Digest(op.Nonce, body)
	valid := make(map[fra.PubKey]struct{}, len(op.Signers))
	for _, signer := range op.Signers {
		if cosig.VerifyOne(signer, msg) {
			valid[signer.PubKey] = struct{}{}
		}
	}
	for _, patch := range op.Patches {
		if patch.Remove {
			return false
		}
		if _, ok := valid[patch.PubKey]; !ok {
			return false
		}
	}
	return true
}

//
// end-block plumbing
//

// tickUnbonding advances the unbonding clocks: rows past their finish height
// keep settling rewards into payout intents, and transition to settled only
// when the coinbase can cover every still-pending reward payment.
func (s *Staking) tickUnbonding(height uint64) {
	for _, row := range s.del.Due(height) {
		required := s.cb.QueuedTotal()
		required.Add(required, row.AccruedReward)

		if row.AccruedReward.Sign() > 0 {
			// rewards settle at the effective end time regardless of coverage
			s.cb.Enqueue(row.Delegator, row.AccruedReward, coinbase.ReasonBlockReward, height)
			row.AccruedReward = new(big.Int)
		}

		if s.cb.Balance().Cmp(required) < 0 {
			// coinbase cannot cover the pending rewards: defer settlement,
			// the row stays indexed and is retried next block
			logger.Debug("unbonding settlement deferred", "delegator", row.Delegator, "validator", row.Validator)
			continue
		}

		settled, stillLocked, err := s.del.Settle(row.Key())
		if err != nil {
			logger.Warn("unbonding settlement failed", "delegator", row.Delegator, "err", err)
			continue
		}
		s.cb.Enqueue(settled.Delegator, settled.Principal, coinbase.ReasonPrincipal, height)
		logger.Info("delegation settled",
			"delegator", settled.Delegator,
			"validator", settled.Validator,
			"principal", settled.Principal,
			"lockReleased", !stillLocked,
		)
	}
}

// releaseDistributions enqueues every scheduled entry whose release height
// has arrived, in canonical order. The funds entered the coinbase when the
// distribution was applied.
func (s *Staking) releaseDistributions(height uint64) error {
	kept := s.scheduled[:0]
	for _, entry := range s.scheduled {
		if entry.ReleaseHeight > height {
			kept = append(kept, entry)
			continue
		}
		s.cb.Enqueue(entry.Addr, entry.Amount, coinbase.ReasonFraDistribution, height)
	}
	s.scheduled = kept
	return nil
}

// rewardCandidates converts the in-force published set into reward weights,
// excluding validators sanctioned since publication.
func (s *Staking) rewardCandidates() []validation.Candidate {
	candidates := make([]validation.Candidate, 0, len(s.published))
	for _, pub := range s.published {
		entry := s.reg.Get(pub.PubKey)
		if entry == nil || entry.Sanction != validation.SanctionNone {
			continue
		}
		candidates = append(candidates, validation.Candidate{
			PubKey: pub.PubKey,
			Power:  new(big.Int).SetUint64(pub.Power),
		})
	}
	return candidates
}

// computeActive snapshots the top-N active set from current bonds.
func (s *Staking) computeActive() []PowerEntry {
	candidates := s.reg.SnapshotActive(func(pk fra.PubKey) (*big.Int, *big.Int) {
		entry := s.reg.Get(pk)
		return s.del.BondsOf(pk, entry.RewardsAddr)
	}, fra.MaxActiveValidators)

	set := make([]PowerEntry, 0, len(candidates))
	for _, c := range candidates {
		set = append(set, PowerEntry{PubKey: c.PubKey, Power: c.Power.Uint64()})
	}
	sort.Slice(set, func(i, j int) bool {
		return bytes.Compare(set[i].PubKey[:], set[j].PubKey[:]) < 0
	})
	return set
}

func (s *Staking) checkTotalPower(set []PowerEntry) error {
	total := new(big.Int)
	for _, entry := range set {
		total.Add(total, new(big.Int).SetUint64(entry.Power))
	}
	if total.Cmp(big.NewInt(fra.MaxTotalPower)) > 0 {
		return errors.New("total voting power exceeds consensus bound")
	}
	return nil
}

// diffSets computes the validator updates between two published sets, both
// sorted by pubkey. Removed validators appear with power zero.
func diffSets(prev, next []PowerEntry) []PowerEntry {
	prevPowers := make(map[fra.PubKey]uint64, len(prev))
	for _, entry := range prev {
		prevPowers[entry.PubKey] = entry.Power
	}
	var diff []PowerEntry
	for _, entry := range next {
		if power, ok := prevPowers[entry.PubKey]; !ok || power != entry.Power {
			diff = append(diff, entry)
		}
		delete(prevPowers, entry.PubKey)
	}
	for _, entry := range prev {
		if _, ok := prevPowers[entry.PubKey]; ok {
			diff = append(diff, PowerEntry{PubKey: entry.PubKey, Power: 0})
		}
	}
	sort.Slice(diff, func(i, j int) bool {
		return bytes.Compare(diff[i].PubKey[:], diff[j].PubKey[:]) < 0
	})
	return diff
}

type governanceBody struct {
	Target      fra.Address
	Fault       FaultKind
	Height      uint64
	EvidenceRef fra.Bytes32
}

func sortDistEntries(entries []DistEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].ReleaseHeight != entries[j].ReleaseHeight {
			return entries[i].ReleaseHeight < entries[j].ReleaseHeight
		}
		return bytes.Compare(entries[i].Addr[:], entries[j].Addr[:]) < 0
	})
}

func opName(op Operation) string {
	switch op.(type) {
	case *DelegationOp:
		return "delegation"
	case *UnDelegationOp:
		return "undelegation"
	case *ClaimOp:
		return "claim"
	case *ValidatorUpdateOp:
		return "validator-update"
	case *GovernanceOp:
		return "governance"
	case *FraDistributionOp:
		return "fra-distribution"
	}
	return "unknown"
}
