// Copyright (c) 2026 The Findora Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staking

import (
	"crypto/ed25519"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/require"

	"github.com/findoranetwork/stakingd/fra"
	"github.com/findoranetwork/stakingd/ledger"
	"github.com/findoranetwork/stakingd/staking/cosig"
)

// testKey derives a deterministic ed25519 key pair from a single id byte.
func testKey(id byte) (fra.PubKey, ed25519.PrivateKey) {
	seed := make([]byte, ed25519.SeedSize)
	seed[0] = id
	priv := ed25519.NewKeyFromSeed(seed)
	var pk fra.PubKey
	copy(pk[:], priv.Public().(ed25519.PublicKey))
	return pk, priv
}

// vraOf derives a distinct ledger rewards address for a test validator.
func vraOf(pk fra.PubKey) fra.Address {
	return fra.BytesToAddress(append([]byte("vra-"), pk[:16]...))
}

type testEnv struct {
	t   *testing.T
	stk *Staking
	led *ledger.Mem

	keys    map[fra.PubKey]ed25519.PrivateKey
	genesis []fra.PubKey

	height   uint64
	evidence []Evidence
	rejects  []*Reject

	// feePerBlock, when set, is charged into the coinbase every step, the way
	// network fees back the reward pool on a live chain.
	feePerBlock *big.Int
}

// newTestEnv boots a core with count genesis validators, all at the given
// power, 10% commission, proposed by the first of them.
func newTestEnv(t *testing.T, count int, power uint64) *testEnv {
	e := &testEnv{
		t:    t,
		led:  ledger.NewMem(),
		keys: make(map[fra.PubKey]ed25519.PrivateKey),
	}
	e.stk = New(e.led)

	vals := make([]GenesisValidator, 0, count)
	for i := range count {
		pk, priv := testKey(byte(i + 1))
		e.keys[pk] = priv
		e.genesis = append(e.genesis, pk)
		vals = append(vals, GenesisValidator{
			PubKey:      pk,
			RewardsAddr: vraOf(pk),
			Commission:  fra.Ratio{Num: 1, Den: 10},
			Memo:        "genesis",
			Power:       power,
		})
	}
	published, err := e.stk.InitChain(0, vals)
	require.NoError(t, err)
	require.Len(t, published, min(count, fra.MaxActiveValidators))
	return e
}

// signerAddrs reports the whole published set as having signed the last
// commit, keeping liveness counters quiet.
func (e *testEnv) signerAddrs() []fra.Address {
	var addrs []fra.Address
	for _, entry := range e.stk.Published() {
		addrs = append(addrs, entry.PubKey.Address())
	}
	return addrs
}

// withEvidence queues consensus evidence for the next step.
func (e *testEnv) withEvidence(ev ...Evidence) *testEnv {
	e.evidence = append(e.evidence, ev...)
	return e
}

// step processes one block carrying the given operations. Rejected operations
// are collected in e.rejects; fatal errors fail the test.
func (e *testEnv) step(ops ...Operation) []PowerEntry {
	e.t.Helper()
	h := e.height + 1
	proposer := e.genesis[0].Address()
	require.NoError(e.t, e.stk.BeginBlock(h, proposer, e.signerAddrs(), e.evidence))
	e.evidence = nil
	if e.feePerBlock != nil {
		require.NoError(e.t, e.stk.ChargeFee(fra.Blake2b([]byte{byte(h)}), e.feePerBlock))
	}
	for _, op := range ops {
		if err := e.stk.Apply(op); err != nil {
			r, ok := AsReject(err)
			require.True(e.t, ok, "fatal error applying %T: %v", op, err)
			e.rejects = append(e.rejects, r)
		}
	}
	diff, err := e.stk.EndBlock(h)
	require.NoError(e.t, err)
	e.height = h
	return diff
}

// steps advances n empty blocks.
func (e *testEnv) steps(n int) {
	for range n {
		e.step()
	}
}

// takeRejects drains the collected rejects.
func (e *testEnv) takeRejects() []*Reject {
	out := e.rejects
	e.rejects = nil
	return out
}

// registerValidator submits a self-signed metadata update for a fresh key.
func (e *testEnv) registerValidator(id byte, commission fra.Ratio) fra.PubKey {
	e.t.Helper()
	pk, priv := testKey(id)
	e.keys[pk] = priv
	op := &ValidatorUpdateOp{
		Patches: []ValidatorPatch{{
			PubKey:      pk,
			RewardsAddr: vraOf(pk),
			Commission:  commission,
			Memo:        "candidate",
		}},
		Nonce: [16]byte{id},
	}
	e.signUpdate(op, pk)
	e.step(op)
	require.Empty(e.t, e.takeRejects())
	require.NotNil(e.t, e.stk.Validator(pk))
	return pk
}

// signUpdate attaches signatures of the given validators to the update.
func (e *testEnv) signUpdate(op *ValidatorUpdateOp, signers ...fra.PubKey) {
	e.t.Helper()
	body, err := rlp.EncodeToBytes(op.Patches)
	require.NoError(e.t, err)
	op.Signers = e.sign(body, op.Nonce, signers...)
}

// signGovernance attaches signatures to a governance op.
func (e *testEnv) signGovernance(op *GovernanceOp, signers ...fra.PubKey) {
	e.t.Helper()
	body, err := rlp.EncodeToBytes(&governanceBody{
		Target:      op.Target,
		Fault:       op.Fault,
		Height:      op.Height,
		EvidenceRef: op.EvidenceRef,
	})
	require.NoError(e.t, err)
	op.Signers = e.sign(body, op.Nonce, signers...)
}

// signDistribution attaches signatures to a distribution op.
func (e *testEnv) signDistribution(op *FraDistributionOp, signers ...fra.PubKey) {
	e.t.Helper()
	body, err := rlp.EncodeToBytes(op.Entries)
	require.NoError(e.t, err)
	op.Signers = e.sign(body, op.Nonce, signers...)
}

func (e *testEnv) sign(body []byte, nonce [16]byte, signers ...fra.PubKey) []cosig.Signer {
	e.t.Helper()
	msg := cosig.Digest(nonce, body)
	out := make([]cosig.Signer, 0, len(signers))
	for _, pk := range signers {
		priv, ok := e.keys[pk]
		require.True(e.t, ok, "no key for %s", pk)
		var sig cosig.Signature
		copy(sig[:], ed25519.Sign(priv, msg))
		out = append(out, cosig.Signer{PubKey: pk, Signature: sig})
	}
	return out
}

// majority returns enough genesis signers to pass the 67% threshold while the
// genesis set holds all power.
func (e *testEnv) majority() []fra.PubKey {
	n := len(e.genesis)*67/100 + 1
	return e.genesis[:n]
}

// selfDelegate bonds from the validator's own rewards address.
func (e *testEnv) selfDelegate(pk fra.PubKey, amount *big.Int) []PowerEntry {
	e.t.Helper()
	diff := e.step(&DelegationOp{
		Delegator: vraOf(pk),
		Validator: pk,
		Amount:    amount,
	})
	require.Empty(e.t, e.takeRejects())
	return diff
}

func rlpEncode(v any) ([]byte, error) {
	return rlp.EncodeToBytes(v)
}

// signWith signs the digest with each key, independent of a testEnv.
func signWith(keys map[fra.PubKey]ed25519.PrivateKey, body []byte, nonce [16]byte, pks ...fra.PubKey) []cosig.Signer {
	msg := cosig.Digest(nonce, body)
	out := make([]cosig.Signer, 0, len(pks))
	for _, pk := range pks {
		var sig cosig.Signature
		copy(sig[:], ed25519.Sign(keys[pk], msg))
		out = append(out, cosig.Signer{PubKey: pk, Signature: sig})
	}
	return out
}

func powerOf(set []PowerEntry, pk fra.PubKey) (uint64, bool) {
	for _, entry := range set {
		if entry.PubKey == pk {
			return entry.Power, true
		}
	}
	return 0, false
}

func fraUnits(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(int64(fra.Fra)))
}
