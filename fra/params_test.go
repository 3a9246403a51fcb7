// Copyright (c) 2026 The Findora Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package fra

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlockRewardSchedule(t *testing.T) {
	hundred := new(big.Int).Mul(big.NewInt(100), big.NewInt(int64(Fra)))
	assert.Equal(t, hundred, BlockRewardAt(0))
	assert.Equal(t, hundred, BlockRewardAt(RewardHalvingBlocks-1))

	fifty := new(big.Int).Rsh(hundred, 1)
	assert.Equal(t, fifty, BlockRewardAt(RewardHalvingBlocks))

	// the schedule floors at one FRA and never reaches zero
	deep := BlockRewardAt(RewardHalvingBlocks * 64)
	assert.Equal(t, new(big.Int).SetUint64(Fra), deep)
}

func TestRatioMulFloor(t *testing.T) {
	commission := Ratio{Num: 1, Den: 10}
	assert.Equal(t, big.NewInt(12), commission.MulFloor(big.NewInt(125)))
	assert.Zero(t, commission.MulFloor(big.NewInt(9)).Sign())

	full := Ratio{Num: 1, Den: 1}
	assert.Equal(t, big.NewInt(9), full.MulFloor(big.NewInt(9)))
}

func TestRatioMeets(t *testing.T) {
	threshold := Ratio{Num: 67, Den: 100}
	assert.False(t, threshold.Meets(big.NewInt(66), big.NewInt(100)))
	assert.True(t, threshold.Meets(big.NewInt(67), big.NewInt(100)))
	assert.True(t, threshold.Meets(big.NewInt(100), big.NewInt(100)))
}

func TestRatioValid(t *testing.T) {
	assert.True(t, Ratio{Num: 0, Den: 1}.Valid())
	assert.True(t, Ratio{Num: 1, Den: 1}.Valid())
	assert.False(t, Ratio{Num: 2, Den: 1}.Valid())
	assert.False(t, Ratio{Num: 1, Den: 0}.Valid())
}

func TestPubKeyAddress(t *testing.T) {
	var pk PubKey
	pk[0] = 0xab
	addr := pk.Address()
	assert.False(t, addr.IsZero())
	// stable derivation
	assert.Equal(t, addr, pk.Address())
}

func TestParseRoundTrip(t *testing.T) {
	var pk PubKey
	pk[0] = 1
	pk[31] = 2
	parsed, err := ParsePubKey(pk.String())
	assert.NoError(t, err)
	assert.Equal(t, pk, parsed)

	var addr Address
	addr[0] = 3
	parsedAddr, err := ParseAddress(addr.String())
	assert.NoError(t, err)
	assert.Equal(t, addr, parsedAddr)

	_, err = ParseAddress("0x123")
	assert.Error(t, err)
}
