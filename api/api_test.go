// Copyright (c) 2026 The Findora Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findoranetwork/stakingd/fra"
	"github.com/findoranetwork/stakingd/node"
	"github.com/findoranetwork/stakingd/staking"
	"github.com/findoranetwork/stakingd/staking/delegation"
	"github.com/findoranetwork/stakingd/staking/validation"
)

type fakeProvider struct {
	state *node.CommittedState
}

func (f *fakeProvider) Committed() *node.CommittedState { return f.state }

func testState() *node.CommittedState {
	var pk fra.PubKey
	pk[0] = 0x11
	delegator := fra.BytesToAddress([]byte("delegator"))

	snap := &staking.Snapshot{
		Height: 42,
		Validators: []*validation.Validation{{
			PubKey:             pk,
			RewardsAddr:        fra.BytesToAddress([]byte("vra")),
			Commission:         fra.Ratio{Num: 1, Den: 10},
			Memo:               "api-test",
			AccumulatedRewards: big.NewInt(12345),
			CommissionDust:     new(big.Int),
		}},
		Delegations: []*delegation.Entry{{
			Delegator:     delegator,
			Validator:     pk,
			Principal:     big.NewInt(5000),
			BondHeight:    7,
			State:         delegation.StateUnbonding,
			UnbondFinish:  99,
			AccruedReward: big.NewInt(3),
		}},
		CoinbaseBalance: big.NewInt(777),
		CoinbaseStalled: true,
		Burned:          new(big.Int),
		Published:       []staking.PowerEntry{{PubKey: pk, Power: 5000}},
	}
	hash, _ := snap.Hash()
	return &node.CommittedState{Snapshot: snap, Hash: hash}
}

func newTestServer(t *testing.T) (*httptest.Server, *node.CommittedState) {
	t.Helper()
	state := testState()
	srv := httptest.NewServer(New(&fakeProvider{state: state}, false))
	t.Cleanup(srv.Close)
	return srv, state
}

func get(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHead(t *testing.T) {
	srv, state := newTestServer(t)
	var head map[string]any
	status := get(t, srv.URL+"/staking/head", &head)
	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 42, head["height"])
	assert.Equal(t, state.Hash.String(), head["hash"])
}

func TestValidators(t *testing.T) {
	srv, _ := newTestServer(t)
	var views []map[string]any
	status := get(t, srv.URL+"/staking/validators", &views)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, views, 1)
	assert.Equal(t, "api-test", views[0]["memo"])
	assert.Equal(t, "none", views[0]["sanction"])
	assert.EqualValues(t, 5000, views[0]["power"])
}

func TestValidatorByKey(t *testing.T) {
	srv, state := newTestServer(t)
	pk := state.Snapshot.Validators[0].PubKey

	var view map[string]any
	status := get(t, srv.URL+"/staking/validators/"+pk.String(), &view)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "12345", view["accumulated_rewards"])

	status = get(t, srv.URL+"/staking/validators/0xff", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	var other fra.PubKey
	other[0] = 0x22
	status = get(t, srv.URL+"/staking/validators/"+other.String(), nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestDelegations(t *testing.T) {
	srv, state := newTestServer(t)
	delegator := state.Snapshot.Delegations[0].Delegator

	var views []map[string]any
	status := get(t, srv.URL+"/staking/delegations/"+delegator.String(), &views)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, views, 1)
	assert.Equal(t, "unbonding", views[0]["state"])
	assert.EqualValues(t, 99, views[0]["unbond_finish_height"])
	assert.Equal(t, "5000", views[0]["principal"])

	// unknown delegator yields an empty list, not an error
	var empty []map[string]any
	status = get(t, srv.URL+"/staking/delegations/"+fra.BytesToAddress([]byte("nobody")).String(), &empty)
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, empty)
}

func TestCoinbase(t *testing.T) {
	srv, _ := newTestServer(t)
	var view map[string]any
	status := get(t, srv.URL+"/staking/coinbase", &view)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "777", view["balance"])
	assert.Equal(t, true, view["stalled"])
}

func TestNoCommittedState(t *testing.T) {
	srv := httptest.NewServer(New(&fakeProvider{}, false))
	defer srv.Close()
	status := get(t, srv.URL+"/staking/head", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
}
