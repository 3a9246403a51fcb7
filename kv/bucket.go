// Copyright (c) 2026 The Findora Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package kv

import (
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Bucket provides a logical bucket for a kv store.
type Bucket string

type bucketStore struct {
	b   Bucket
	src Store
}

// NewStore creates a bucket store from the source store.
func (b Bucket) NewStore(src Store) Store {
	return &bucketStore{b, src}
}

func (s *bucketStore) key(key []byte) []byte {
	return append(append(make([]byte, 0, len(s.b)+len(key)), s.b...), key...)
}

func (s *bucketStore) Get(key []byte) ([]byte, error) {
	return s.src.Get(s.key(key))
}

func (s *bucketStore) Has(key []byte) (bool, error) {
	return s.src.Has(s.key(key))
}

func (s *bucketStore) IsNotFound(err error) bool {
	return s.src.IsNotFound(err)
}

func (s *bucketStore) Put(key, val []byte) error {
	return s.src.Put(s.key(key), val)
}

func (s *bucketStore) Delete(key []byte) error {
	return s.src.Delete(s.key(key))
}

func (s *bucketStore) Iterate(r Range) Iterator {
	bounded := Range{Start: s.key(r.Start)}
	if len(r.Limit) == 0 {
		bounded.Limit = util.BytesPrefix([]byte(s.b)).Limit
	} else {
		bounded.Limit = s.key(r.Limit)
	}
	return &bucketIterator{s.b, s.src.Iterate(bounded)}
}

type bucketIterator struct {
	b Bucket
	Iterator
}

// Key strips the bucket prefix.
func (i *bucketIterator) Key() []byte {
	return i.Iterator.Key()[len(i.b):]
}
