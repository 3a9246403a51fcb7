// Copyright (c) 2026 The Findora Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package fra

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

const (
	// AddressLength length of a consensus address in bytes, sha256(pubkey)[:20].
	AddressLength = 20
	// PubKeyLength length of an ed25519 consensus public key.
	PubKeyLength = 32
)

// PubKey is an ed25519 consensus public key.
type PubKey [PubKeyLength]byte

// Address is the 20-byte digest form of a key. It identifies validators on
// the consensus side and accounts on the ledger side.
type Address [AddressLength]byte

// Bytes32 array of 32 bytes.
type Bytes32 [32]byte

var (
	_ json.Marshaler   = (*Address)(nil)
	_ json.Unmarshaler = (*Address)(nil)
	_ json.Marshaler   = (*PubKey)(nil)
	_ json.Unmarshaler = (*PubKey)(nil)
)

// String implements the stringer interface.
func (p PubKey) String() string {
	return "0x" + hex.EncodeToString(p[:])
}

// Bytes returns byte slice form of the key.
func (p PubKey) Bytes() []byte {
	return p[:]
}

// IsZero returns if the key has all zero bytes.
func (p PubKey) IsZero() bool {
	return p == PubKey{}
}

// Address derives the 20-byte consensus address, sha256(pubkey)[:20].
func (p PubKey) Address() Address {
	var addr Address
	digest := sha256.Sum256(p[:])
	copy(addr[:], digest[:AddressLength])
	return addr
}

// MarshalJSON implements json.Marshaler.
func (p *PubKey) MarshalJSON() ([]byte, error) {
	if p == nil {
		return json.Marshal(nil)
	}
	return json.Marshal(p.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *PubKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParsePubKey(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePubKey converts a string presented key into PubKey type.
func ParsePubKey(s string) (PubKey, error) {
	s, err := strip0x(s, PubKeyLength)
	if err != nil {
		return PubKey{}, err
	}
	var p PubKey
	if _, err := hex.Decode(p[:], []byte(s)); err != nil {
		return PubKey{}, err
	}
	return p, nil
}

// BytesToPubKey converts a byte slice into a PubKey.
// If b is larger than the key length, b will be cropped from the left.
// If b is smaller, b will be extended from the left.
func BytesToPubKey(b []byte) PubKey {
	var p PubKey
	if len(b) > PubKeyLength {
		b = b[len(b)-PubKeyLength:]
	}
	copy(p[PubKeyLength-len(b):], b)
	return p
}

// String implements the stringer interface.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// Bytes returns byte slice form of address.
func (a Address) Bytes() []byte {
	return a[:]
}

// IsZero returns if the address has all zero bytes.
func (a Address) IsZero() bool {
	return a == Address{}
}

// MarshalJSON implements json.Marshaler.
func (a *Address) MarshalJSON() ([]byte, error) {
	if a == nil {
		return json.Marshal(nil)
	}
	return json.Marshal(a.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseAddress(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAddress converts a string presented address into Address type.
func ParseAddress(s string) (Address, error) {
	s, err := strip0x(s, AddressLength)
	if err != nil {
		return Address{}, err
	}
	var a Address
	if _, err := hex.Decode(a[:], []byte(s)); err != nil {
		return Address{}, err
	}
	return a, nil
}

// BytesToAddress converts a byte slice into an Address.
// If b is larger than the address length, b will be cropped from the left.
// If b is smaller, b will be extended from the left.
func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
	return a
}

// String implements stringer.
func (b Bytes32) String() string {
	return "0x" + hex.EncodeToString(b[:])
}

// AbbrevString returns abbrev string presentation.
func (b Bytes32) AbbrevString() string {
	return fmt.Sprintf("0x%x…%x", b[:4], b[28:])
}

// Bytes returns byte slice form of Bytes32.
func (b Bytes32) Bytes() []byte {
	return b[:]
}

// IsZero returns if Bytes32 has all zero bytes.
func (b Bytes32) IsZero() bool {
	return b == Bytes32{}
}

// Blake2b computes blake2b-256 checksum for given data.
func Blake2b(data ...[]byte) (b32 Bytes32) {
	hash, err := blake2b.New256(nil)
	if err != nil {
		panic(err)
	}
	for _, b := range data {
		hash.Write(b)
	}
	hash.Sum(b32[:0])
	return
}

func strip0x(s string, byteLen int) (string, error) {
	if len(s) == byteLen*2 {
		return s, nil
	}
	if len(s) == byteLen*2+2 {
		if strings.ToLower(s[:2]) != "0x" {
			return "", errors.New("invalid prefix")
		}
		return s[2:], nil
	}
	return "", errors.New("invalid length")
}
