// Copyright (c) 2026 The Findora Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package delegation

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findoranetwork/stakingd/fra"
)

func pubkey(id byte) fra.PubKey {
	var pk fra.PubKey
	pk[0] = id
	return pk
}

func addr(id byte) fra.Address {
	return fra.BytesToAddress([]byte{id})
}

func key(d, v byte) Key {
	return Key{Delegator: addr(d), Validator: pubkey(v)}
}

func TestBondAndAppend(t *testing.T) {
	l := NewLedger()

	require.NoError(t, l.Bond(addr(1), pubkey(1), big.NewInt(100), 10))
	require.NoError(t, l.Bond(addr(1), pubkey(1), big.NewInt(50), 12))

	row := l.Get(key(1, 1))
	require.NotNil(t, row)
	assert.Equal(t, big.NewInt(150), row.Principal)
	assert.Equal(t, uint64(10), row.BondHeight, "append keeps the original bond height")
	assert.Equal(t, StateBonded, row.State)
	assert.True(t, l.IsLockRestricted(addr(1)))

	assert.Error(t, l.Bond(addr(1), pubkey(2), new(big.Int), 12))
	assert.Error(t, l.Bond(addr(1), pubkey(2), big.NewInt(-5), 12))
}

func TestNoBondWhileUnbonding(t *testing.T) {
	l := NewLedger()
	require.NoError(t, l.Bond(addr(1), pubkey(1), big.NewInt(100), 1))
	require.NoError(t, l.Unbond(key(1, 1), 5, 25))

	err := l.Bond(addr(1), pubkey(2), big.NewInt(10), 6)
	assert.Error(t, err)

	// a different delegator is unaffected
	require.NoError(t, l.Bond(addr(2), pubkey(2), big.NewInt(10), 6))
}

func TestUnbondOnlyBonded(t *testing.T) {
	l := NewLedger()
	assert.Error(t, l.Unbond(key(1, 1), 5, 25))

	require.NoError(t, l.Bond(addr(1), pubkey(1), big.NewInt(100), 1))
	require.NoError(t, l.Unbond(key(1, 1), 5, 25))
	assert.Error(t, l.Unbond(key(1, 1), 6, 26))

	row := l.Get(key(1, 1))
	assert.Equal(t, StateUnbonding, row.State)
	assert.Equal(t, uint64(25), row.UnbondFinish)
}

func TestClaim(t *testing.T) {
	l := NewLedger()
	require.NoError(t, l.Bond(addr(1), pubkey(1), big.NewInt(100), 1))
	row := l.Get(key(1, 1))
	row.AccruedReward.SetInt64(70)

	got, err := l.Claim(key(1, 1), big.NewInt(30))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(30), got)
	assert.Equal(t, big.NewInt(40), row.AccruedReward)

	got, err = l.Claim(key(1, 1), nil)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(40), got)

	_, err = l.Claim(key(1, 1), nil)
	assert.Error(t, err, "double claim must fail")
}

func TestDueAndSettle(t *testing.T) {
	l := NewLedger()
	require.NoError(t, l.Bond(addr(1), pubkey(1), big.NewInt(100), 1))
	require.NoError(t, l.Bond(addr(2), pubkey(1), big.NewInt(200), 1))
	require.NoError(t, l.Unbond(key(1, 1), 5, 20))
	require.NoError(t, l.Unbond(key(2, 1), 6, 21))

	assert.Empty(t, l.Due(19))
	assert.Len(t, l.Due(20), 1)
	assert.Len(t, l.Due(21), 2)

	// settlement is blocked while rewards are unpaid
	l.Get(key(1, 1)).AccruedReward.SetInt64(5)
	_, _, err := l.Settle(key(1, 1))
	assert.Error(t, err)

	l.Get(key(1, 1)).AccruedReward.SetInt64(0)
	entry, stillLocked, err := l.Settle(key(1, 1))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), entry.Principal)
	assert.False(t, stillLocked)
	assert.False(t, l.IsLockRestricted(addr(1)))
	assert.Nil(t, l.Get(key(1, 1)))

	// deferred rows stay due until settled
	assert.Len(t, l.Due(30), 1)
}

func TestLockAcrossRows(t *testing.T) {
	l := NewLedger()
	require.NoError(t, l.Bond(addr(1), pubkey(1), big.NewInt(100), 1))
	require.NoError(t, l.Bond(addr(1), pubkey(2), big.NewInt(100), 1))
	require.NoError(t, l.Unbond(key(1, 1), 5, 10))

	l.Get(key(1, 1)).AccruedReward.SetInt64(0)
	_, stillLocked, err := l.Settle(key(1, 1))
	require.NoError(t, err)
	assert.True(t, stillLocked, "other live row keeps the lock")
	assert.True(t, l.IsLockRestricted(addr(1)))
}

func TestBondsOfSplitsSelfAndExternal(t *testing.T) {
	l := NewLedger()
	rewardsAddr := addr(9)
	require.NoError(t, l.Bond(rewardsAddr, pubkey(1), big.NewInt(1000), 1))
	require.NoError(t, l.Bond(addr(1), pubkey(1), big.NewInt(10), 1))
	require.NoError(t, l.Bond(addr(2), pubkey(1), big.NewInt(20), 1))

	self, ext := l.BondsOf(pubkey(1), rewardsAddr)
	assert.Equal(t, big.NewInt(1000), self)
	assert.Equal(t, big.NewInt(30), ext)

	// unbonding stakes stop voting
	require.NoError(t, l.Unbond(key(2, 1), 2, 20))
	_, ext = l.BondsOf(pubkey(1), rewardsAddr)
	assert.Equal(t, big.NewInt(10), ext)
}

func TestCanonicalOrder(t *testing.T) {
	l := NewLedger()
	require.NoError(t, l.Bond(addr(3), pubkey(2), big.NewInt(1), 1))
	require.NoError(t, l.Bond(addr(1), pubkey(2), big.NewInt(1), 1))
	require.NoError(t, l.Bond(addr(2), pubkey(1), big.NewInt(1), 1))

	all := l.All()
	require.Len(t, all, 3)
	assert.Equal(t, addr(1), all[0].Delegator)
	assert.Equal(t, addr(2), all[1].Delegator)
	assert.Equal(t, addr(3), all[2].Delegator)
}

func TestRestoreRebuildsIndexes(t *testing.T) {
	l := NewLedger()
	require.NoError(t, l.Bond(addr(1), pubkey(1), big.NewInt(100), 1))
	require.NoError(t, l.Unbond(key(1, 1), 5, 42))

	rebuilt := NewLedger()
	for _, row := range l.All() {
		rebuilt.Restore(row.Copy())
	}
	assert.True(t, rebuilt.IsLockRestricted(addr(1)))
	assert.True(t, rebuilt.HasUnbonding(addr(1)))
	assert.Len(t, rebuilt.Due(42), 1)
}
