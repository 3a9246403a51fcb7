// Copyright (c) 2026 The Findora Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package node

import (
	"crypto/ed25519"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findoranetwork/stakingd/fra"
	"github.com/findoranetwork/stakingd/kv"
	"github.com/findoranetwork/stakingd/ledger"
	"github.com/findoranetwork/stakingd/staking"
)

func testGenesis(n int) []staking.GenesisValidator {
	vals := make([]staking.GenesisValidator, 0, n)
	for i := range n {
		seed := make([]byte, ed25519.SeedSize)
		seed[0] = byte(i + 1)
		priv := ed25519.NewKeyFromSeed(seed)
		var pk fra.PubKey
		copy(pk[:], priv.Public().(ed25519.PublicKey))
		vals = append(vals, staking.GenesisValidator{
			PubKey:      pk,
			RewardsAddr: fra.BytesToAddress(pk[:20]),
			Commission:  fra.Ratio{Num: 1, Den: 10},
			Power:       1_000_000,
		})
	}
	return vals
}

func emptyBlock(n *Node, height uint64) *Block {
	committed := n.Committed()
	var signers []fra.Address
	for _, entry := range committed.Snapshot.Published {
		signers = append(signers, entry.PubKey.Address())
	}
	return &Block{
		Height:            height,
		Proposer:          committed.Snapshot.Published[0].PubKey.Address(),
		LastCommitSigners: signers,
		Fees:              []FeeCharge{{TxID: fra.Blake2b([]byte{byte(height)}), Amount: big.NewInt(1000)}},
	}
}

func TestProcessAndRestart(t *testing.T) {
	db, err := kv.NewMem()
	require.NoError(t, err)
	defer db.Close()

	vals := testGenesis(4)
	n, err := New(db, ledger.NewMem(), 0, vals)
	require.NoError(t, err)
	require.NotNil(t, n.Committed())

	for h := uint64(1); h <= 5; h++ {
		_, err := n.Process(emptyBlock(n, h))
		require.NoError(t, err)
	}
	headHash := n.Committed().Hash
	assert.Equal(t, uint64(5), n.Committed().Snapshot.Height)

	// a restart over the same db restores the identical state
	restarted, err := New(db, ledger.NewMem(), 0, vals)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), restarted.Committed().Snapshot.Height)
	assert.Equal(t, headHash, restarted.Committed().Hash)

	// and keeps processing where it left off
	_, err = restarted.Process(emptyBlock(restarted, 6))
	require.NoError(t, err)
	assert.Equal(t, uint64(6), restarted.Committed().Snapshot.Height)
}

func TestReplayDeterminism(t *testing.T) {
	run := func() fra.Bytes32 {
		db, err := kv.NewMem()
		require.NoError(t, err)
		defer db.Close()
		n, err := New(db, ledger.NewMem(), 0, testGenesis(4))
		require.NoError(t, err)
		for h := uint64(1); h <= 8; h++ {
			_, err := n.Process(emptyBlock(n, h))
			require.NoError(t, err)
		}
		return n.Committed().Hash
	}
	assert.Equal(t, run(), run())
}

func TestNonContiguousBlockFatal(t *testing.T) {
	db, err := kv.NewMem()
	require.NoError(t, err)
	defer db.Close()
	n, err := New(db, ledger.NewMem(), 0, testGenesis(4))
	require.NoError(t, err)

	_, err = n.Process(emptyBlock(n, 7))
	assert.Error(t, err)
	// nothing was committed
	assert.Equal(t, uint64(0), n.Committed().Snapshot.Height)
}

func TestCorruptSnapshotDetected(t *testing.T) {
	db, err := kv.NewMem()
	require.NoError(t, err)
	defer db.Close()

	n, err := New(db, ledger.NewMem(), 0, testGenesis(4))
	require.NoError(t, err)
	_, err = n.Process(emptyBlock(n, 1))
	require.NoError(t, err)

	// flip a byte of the stored head snapshot
	store := kv.Bucket("snap-").NewStore(db)
	key := heightKey(1)
	raw, err := store.Get(key)
	require.NoError(t, err)
	raw[len(raw)/2] ^= 0xff
	require.NoError(t, store.Put(key, raw))

	_, err = New(db, ledger.NewMem(), 0, testGenesis(4))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "state hash mismatch")
}

func TestLoadByHeight(t *testing.T) {
	db, err := kv.NewMem()
	require.NoError(t, err)
	defer db.Close()

	n, err := New(db, ledger.NewMem(), 0, testGenesis(4))
	require.NoError(t, err)
	for h := uint64(1); h <= 3; h++ {
		_, err := n.Process(emptyBlock(n, h))
		require.NoError(t, err)
	}

	store := NewStore(db)
	snap, err := store.Load(2)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), snap.Height)
}
