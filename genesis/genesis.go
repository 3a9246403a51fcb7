// Copyright (c) 2026 The Findora Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package genesis loads the configured initial validator set.
package genesis

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/findoranetwork/stakingd/fra"
	"github.com/findoranetwork/stakingd/staking"
)

// Validator is one predefined genesis member.
type Validator struct {
	TDPubKey       fra.PubKey  `json:"td_pubkey"`
	RewardsAddress fra.Address `json:"rewards_address"`
	Power          uint64      `json:"power"`
	CommissionRate *[2]uint64  `json:"commission_rate,omitempty"`
	Memo           string      `json:"memo,omitempty"`
}

// Genesis is the initial chain configuration.
type Genesis struct {
	Height     uint64      `json:"height"`
	Validators []Validator `json:"validators"`
}

// defaultCommission applies when the config omits a rate, 1%.
var defaultCommission = fra.Ratio{Num: 1, Den: 100}

// Load reads and parses a genesis file.
func Load(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read genesis file")
	}
	return Parse(data)
}

// Parse decodes and validates genesis JSON.
func Parse(data []byte) (*Genesis, error) {
	var g Genesis
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, errors.Wrap(err, "parse genesis")
	}
	if len(g.Validators) == 0 {
		return nil, errors.New("genesis has no validators")
	}
	seen := make(map[fra.PubKey]struct{}, len(g.Validators))
	for _, v := range g.Validators {
		if v.TDPubKey.IsZero() {
			return nil, errors.New("genesis validator with zero pubkey")
		}
		if _, dup := seen[v.TDPubKey]; dup {
			return nil, errors.Errorf("duplicate genesis validator %s", v.TDPubKey)
		}
		seen[v.TDPubKey] = struct{}{}
		if v.Power == 0 {
			return nil, errors.Errorf("genesis validator %s with zero power", v.TDPubKey)
		}
		if v.CommissionRate != nil {
			rate := fra.Ratio{Num: v.CommissionRate[0], Den: v.CommissionRate[1]}
			if !rate.Valid() {
				return nil, errors.Errorf("invalid commission rate for %s", v.TDPubKey)
			}
		}
	}
	return &g, nil
}

// Build converts the parsed config into the staking core's genesis set.
func (g *Genesis) Build() []staking.GenesisValidator {
	vals := make([]staking.GenesisValidator, 0, len(g.Validators))
	for _, v := range g.Validators {
		commission := defaultCommission
		if v.CommissionRate != nil {
			commission = fra.Ratio{Num: v.CommissionRate[0], Den: v.CommissionRate[1]}
		}
		vals = append(vals, staking.GenesisValidator{
			PubKey:      v.TDPubKey,
			RewardsAddr: v.RewardsAddress,
			Commission:  commission,
			Memo:        v.Memo,
			Power:       v.Power,
		})
	}
	return vals
}
