// Copyright (c) 2026 The Findora Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package cosig implements the weighted multi-signature rule gating
// validator-set and governance operations.
package cosig

import (
	"crypto/ed25519"
	"math/big"

	"github.com/pkg/errors"

	"github.com/findoranetwork/stakingd/fra"
)

// Verification failures.
var (
	ErrKeyUnknown         = errors.New("cosig: signer not in active set")
	ErrSigInvalid         = errors.New("cosig: invalid signature")
	ErrWeightInsufficient = errors.New("cosig: insufficient signer weight")
)

// Signature is an ed25519 signature over the operation digest.
type Signature [ed25519.SignatureSize]byte

// Signer is one attached co-signature.
type Signer struct {
	PubKey    fra.PubKey
	Signature Signature
}

// Rule is the weight table the signatures are evaluated against: the voting
// powers of the active set at the time of application, not authorship.
type Rule struct {
	threshold fra.Ratio
	weights   map[fra.PubKey]*big.Int
	total     *big.Int
}

// NewRule builds a rule from the current active-set powers.
func NewRule(threshold fra.Ratio, weights map[fra.PubKey]*big.Int) *Rule {
	total := new(big.Int)
	w := make(map[fra.PubKey]*big.Int, len(weights))
	for pk, power := range weights {
		w[pk] = new(big.Int).Set(power)
		total.Add(total, power)
	}
	return &Rule{threshold: threshold, weights: w, total: total}
}

// Digest computes the signed message for an operation body and its
// anti-replay nonce.
func Digest(nonce [16]byte, body []byte) []byte {
	d := fra.Blake2b(nonce[:], body)
	return d.Bytes()
}

// VerifyOne checks a single signature against the signed message.
func VerifyOne(signer Signer, msg []byte) bool {
	return ed25519.Verify(signer.PubKey[:], msg, signer.Signature[:])
}

// Check verifies that the signers are all members of the rule, that every
// signature is valid over Digest(nonce, body), and that the summed weight of
// distinct signers meets the threshold fraction of the total.
func (r *Rule) Check(nonce [16]byte, body []byte, signers []Signer) error {
	msg := Digest(nonce, body)
	got := new(big.Int)
	seen := make(map[fra.PubKey]struct{}, len(signers))
	for _, signer := range signers {
		weight, ok := r.weights[signer.PubKey]
		if !ok {
			return ErrKeyUnknown
		}
		if !ed25519.Verify(signer.PubKey[:], msg, signer.Signature[:]) {
			return ErrSigInvalid
		}
		if _, dup := seen[signer.PubKey]; dup {
			continue
		}
		seen[signer.PubKey] = struct{}{}
		got.Add(got, weight)
	}
	if !r.threshold.Meets(got, r.total) {
		return ErrWeightInsufficient
	}
	return nil
}
