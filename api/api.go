// Copyright (c) 2026 The Findora Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package api serves read-only staking queries from immutable committed
// snapshots. It never touches live core state.
package api

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/findoranetwork/stakingd/fra"
	"github.com/findoranetwork/stakingd/node"
	"github.com/findoranetwork/stakingd/staking/delegation"
)

// CommitProvider yields the last committed read view.
type CommitProvider interface {
	Committed() *node.CommittedState
}

type api struct {
	provider CommitProvider
}

// New builds the http handler for the staking query API.
func New(provider CommitProvider, requestLogs bool) http.Handler {
	a := &api{provider: provider}

	router := mux.NewRouter()
	sub := router.PathPrefix("/staking").Subrouter()
	sub.Path("/head").Methods(http.MethodGet).HandlerFunc(a.handleHead)
	sub.Path("/validators").Methods(http.MethodGet).HandlerFunc(a.handleValidators)
	sub.Path("/validators/{pubkey}").Methods(http.MethodGet).HandlerFunc(a.handleValidator)
	sub.Path("/delegations/{delegator}").Methods(http.MethodGet).HandlerFunc(a.handleDelegations)
	sub.Path("/coinbase").Methods(http.MethodGet).HandlerFunc(a.handleCoinbase)

	handler := handlers.CompressHandler(router)
	if requestLogs {
		handler = handlers.LoggingHandler(os.Stdout, handler)
	}
	return handler
}

func (a *api) committed(w http.ResponseWriter) *node.CommittedState {
	committed := a.provider.Committed()
	if committed == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("no committed state"))
		return nil
	}
	return committed
}

func (a *api) handleHead(w http.ResponseWriter, _ *http.Request) {
	committed := a.committed(w)
	if committed == nil {
		return
	}
	writeJSON(w, map[string]any{
		"height": committed.Snapshot.Height,
		"hash":   committed.Hash.String(),
	})
}

type validatorView struct {
	PubKey             fra.PubKey  `json:"td_pubkey"`
	Address            fra.Address `json:"td_addr"`
	RewardsAddr        fra.Address `json:"rewards_address"`
	Commission         string      `json:"commission_rate"`
	Memo               string      `json:"memo,omitempty"`
	Sanction           string      `json:"sanction"`
	AccumulatedRewards string      `json:"accumulated_rewards"`
	Power              uint64      `json:"power"`
}

func (a *api) handleValidators(w http.ResponseWriter, _ *http.Request) {
	committed := a.committed(w)
	if committed == nil {
		return
	}
	snap := committed.Snapshot
	powers := make(map[fra.PubKey]uint64, len(snap.Published))
	for _, entry := range snap.Published {
		powers[entry.PubKey] = entry.Power
	}
	views := make([]validatorView, 0, len(snap.Validators))
	for _, entry := range snap.Validators {
		views = append(views, validatorView{
			PubKey:             entry.PubKey,
			Address:            entry.PubKey.Address(),
			RewardsAddr:        entry.RewardsAddr,
			Commission:         entry.Commission.String(),
			Memo:               entry.Memo,
			Sanction:           entry.Sanction.String(),
			AccumulatedRewards: entry.AccumulatedRewards.String(),
			Power:              powers[entry.PubKey],
		})
	}
	writeJSON(w, views)
}

func (a *api) handleValidator(w http.ResponseWriter, r *http.Request) {
	committed := a.committed(w)
	if committed == nil {
		return
	}
	pk, err := fra.ParsePubKey(mux.Vars(r)["pubkey"])
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(err, "pubkey"))
		return
	}
	snap := committed.Snapshot
	for _, entry := range snap.Validators {
		if entry.PubKey != pk {
			continue
		}
		var power uint64
		for _, pub := range snap.Published {
			if pub.PubKey == pk {
				power = pub.Power
			}
		}
		writeJSON(w, validatorView{
			PubKey:             entry.PubKey,
			Address:            entry.PubKey.Address(),
			RewardsAddr:        entry.RewardsAddr,
			Commission:         entry.Commission.String(),
			Memo:               entry.Memo,
			Sanction:           entry.Sanction.String(),
			AccumulatedRewards: entry.AccumulatedRewards.String(),
			Power:              power,
		})
		return
	}
	writeError(w, http.StatusNotFound, errors.New("validator not found"))
}

type delegationView struct {
	Validator     fra.PubKey `json:"td_pubkey"`
	Principal     string     `json:"principal"`
	BondHeight    uint64     `json:"bond_height"`
	State         string     `json:"state"`
	UnbondFinish  uint64     `json:"unbond_finish_height,omitempty"`
	AccruedReward string     `json:"accrued_reward"`
}

func (a *api) handleDelegations(w http.ResponseWriter, r *http.Request) {
	committed := a.committed(w)
	if committed == nil {
		return
	}
	delegator, err := fra.ParseAddress(mux.Vars(r)["delegator"])
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(err, "delegator"))
		return
	}
	views := []delegationView{}
	for _, row := range committed.Snapshot.Delegations {
		if row.Delegator != delegator {
			continue
		}
		view := delegationView{
			Validator:     row.Validator,
			Principal:     row.Principal.String(),
			BondHeight:    row.BondHeight,
			State:         row.State.String(),
			AccruedReward: row.AccruedReward.String(),
		}
		if row.State == delegation.StateUnbonding {
			view.UnbondFinish = row.UnbondFinish
		}
		views = append(views, view)
	}
	writeJSON(w, views)
}

func (a *api) handleCoinbase(w http.ResponseWriter, _ *http.Request) {
	committed := a.committed(w)
	if committed == nil {
		return
	}
	snap := committed.Snapshot
	writeJSON(w, map[string]any{
		"balance":        snap.CoinbaseBalance.String(),
		"stalled":        snap.CoinbaseStalled,
		"queued_intents": len(snap.PayoutQueue),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// headers are gone already, nothing left to do
		return
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	http.Error(w, err.Error(), status)
}
