// Copyright (c) 2026 The Findora Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package node wires the staking core to its snapshot store and exposes the
// consensus-driver surface: init-chain, block processing, and immutable
// committed snapshots for readers.
package node

import (
	"math/big"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/findoranetwork/stakingd/fra"
	"github.com/findoranetwork/stakingd/kv"
	"github.com/findoranetwork/stakingd/ledger"
	"github.com/findoranetwork/stakingd/log"
	"github.com/findoranetwork/stakingd/staking"
)

var logger = log.WithContext("pkg", "node")

// FeeCharge routes a transaction fee into the coinbase.
type FeeCharge struct {
	TxID   fra.Bytes32
	Amount *big.Int
}

// Block is one consensus-ordered block input.
type Block struct {
	Height            uint64
	Proposer          fra.Address
	LastCommitSigners []fra.Address
	Evidence          []staking.Evidence
	Operations        []staking.Operation
	Fees              []FeeCharge
}

// Node hosts the staking core. Block processing is strictly serial; committed
// snapshots are available concurrently through Committed.
type Node struct {
	stk   *staking.Staking
	store *Store

	committed atomic.Pointer[CommittedState]
}

// CommittedState is the immutable read view of the last commit.
type CommittedState struct {
	Snapshot *staking.Snapshot
	Hash     fra.Bytes32
}

// New opens a node over the given database. If the store holds a head
// snapshot it is restored and verified; otherwise the genesis set initializes
// the chain.
func New(db kv.Store, payer ledger.Payer, genesisHeight uint64, genesisVals []staking.GenesisValidator) (*Node, error) {
	store := NewStore(db)
	n := &Node{store: store}

	snap, err := store.LoadHead()
	if err != nil {
		return nil, err
	}
	if snap != nil {
		stk, err := staking.FromSnapshot(snap, payer)
		if err != nil {
			return nil, errors.Wrap(err, "restore staking state")
		}
		n.stk = stk
		if err := n.commit(); err != nil {
			return nil, err
		}
		logger.Info("restored head snapshot", "height", snap.Height)
		return n, nil
	}

	n.stk = staking.New(payer)
	if _, err := n.stk.InitChain(genesisHeight, genesisVals); err != nil {
		return nil, err
	}
	if err := n.commit(); err != nil {
		return nil, err
	}
	logger.Info("initialized chain", "height", genesisHeight, "validators", len(genesisVals))
	return n, nil
}

// Staking exposes the core for lock queries by the ledger collaborator.
func (n *Node) Staking() *staking.Staking {
	return n.stk
}

// Committed returns the last committed read view.
func (n *Node) Committed() *CommittedState {
	return n.committed.Load()
}

// Process applies one block atomically and returns the validator diff for
// the consensus driver. A rejected operation is logged and skipped; any other
// failure aborts without commit and the caller must halt.
func (n *Node) Process(block *Block) ([]staking.PowerEntry, error) {
	if err := n.stk.BeginBlock(block.Height, block.Proposer, block.LastCommitSigners, block.Evidence); err != nil {
		return nil, errors.Wrap(err, "begin block")
	}
	for _, fee := range block.Fees {
		if err := n.stk.ChargeFee(fee.TxID, fee.Amount); err != nil {
			if _, ok := staking.AsReject(err); ok {
				logger.Warn("fee charge rejected", "tx", fee.TxID, "err", err)
				continue
			}
			return nil, err
		}
	}
	for i, op := range block.Operations {
		if err := n.stk.Apply(op); err != nil {
			if _, ok := staking.AsReject(err); ok {
				logger.Warn("operation rejected", "height", block.Height, "index", i, "err", err)
				continue
			}
			return nil, errors.Wrapf(err, "operation %d", i)
		}
	}
	diff, err := n.stk.EndBlock(block.Height)
	if err != nil {
		return nil, errors.Wrap(err, "end block")
	}
	if err := n.commit(); err != nil {
		return nil, err
	}
	return diff, nil
}

func (n *Node) commit() error {
	snap, err := n.stk.Snapshot()
	if err != nil {
		return err
	}
	hash, err := n.store.Save(snap)
	if err != nil {
		return errors.Wrap(err, "commit snapshot")
	}
	n.committed.Store(&CommittedState{Snapshot: snap, Hash: hash})
	return nil
}
