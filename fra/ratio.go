// Copyright (c) 2026 The Findora Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package fra

import (
	"fmt"
	"math/big"
)

// Ratio is an exact rational in [0, Num/Den]. All fraction math in the
// staking core goes through Ratio so no floating point ever touches amounts.
type Ratio struct {
	Num uint64
	Den uint64
}

// Valid reports whether the ratio is well formed and does not exceed one.
func (r Ratio) Valid() bool {
	return r.Den > 0 && r.Num <= r.Den
}

// IsZero returns true for a zero-valued ratio.
func (r Ratio) IsZero() bool {
	return r.Num == 0
}

// MulFloor returns floor(x * r). x must be non-negative.
func (r Ratio) MulFloor(x *big.Int) *big.Int {
	n := new(big.Int).Mul(x, new(big.Int).SetUint64(r.Num))
	return n.Div(n, new(big.Int).SetUint64(r.Den))
}

// Meets reports whether got/total >= r, evaluated without division.
func (r Ratio) Meets(got, total *big.Int) bool {
	lhs := new(big.Int).Mul(got, new(big.Int).SetUint64(r.Den))
	rhs := new(big.Int).Mul(total, new(big.Int).SetUint64(r.Num))
	return lhs.Cmp(rhs) >= 0
}

// String implements the stringer interface.
func (r Ratio) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}
