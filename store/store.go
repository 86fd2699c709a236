// Copyright 2021 Optakt Labs OÜ
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not
// use this file except in compliance with the License. You may obtain a copy of
// the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations under
// the License.

// Package store provides optional on-disk persistence for copies of leaf
// node filters, keyed by experiment name. It is not part of the tree's core
// algorithms: the tree keeps every filter in its own nodes, in memory, and
// never reads from the store during insertion or query; the store only
// holds copies that can be fetched back by name.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/hashicorp/go-multierror"
	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// persistInterval is how often the store commits the current transaction
// even if nothing has forced it to do so yet.
const persistInterval = 100 * time.Millisecond

// Store is a write-back cache of leaf filter bytes in front of a persistent
// on-disk database: filters stay in the LRU cache until evicted, at which
// point they get committed to disk.
type Store struct {
	log zerolog.Logger

	db    *badger.DB
	sema  *semaphore.Weighted
	tx    *badger.Txn
	mutex *sync.RWMutex
	wg    *sync.WaitGroup
	err   chan error

	cache     *lru.Cache
	cacheSize int

	done chan struct{}
}

// New creates a store backed by a badger database at the configured path,
// with an LRU write-back cache of the configured size.
func New(log zerolog.Logger, opts ...Option) (*Store, error) {
	logger := log.With().Str("component", "filter_store").Logger()

	config := DefaultConfig
	for _, opt := range opts {
		opt(&config)
	}

	badgerOpts := badger.DefaultOptions(config.StoragePath)
	badgerOpts.Logger = nil
	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("could not open filter database: %w", err)
	}

	s := Store{
		log: logger,
		db:  db,
		tx:  db.NewTransaction(true),

		sema:      semaphore.NewWeighted(16),
		err:       make(chan error, 16),
		done:      make(chan struct{}),
		mutex:     &sync.RWMutex{},
		wg:        &sync.WaitGroup{},
		cacheSize: config.CacheSize,
	}

	s.wg.Add(1)
	go s.flush()

	s.cache, err = lru.NewWithEvict(config.CacheSize, func(k interface{}, v interface{}) {
		name, ok := k.(string)
		if !ok {
			logger.Fatal().Interface("got", k).Msg("unexpected key format")
		}
		raw, ok := v.([]byte)
		if !ok {
			logger.Fatal().Interface("got", v).Msg("unexpected value format")
		}
		if err := s.write(name, raw); err != nil {
			logger.Fatal().Err(err).Msg("could not persist leaf filter")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("could not create filter cache: %w", err)
	}

	return &s, nil
}

// Save stores the raw bytes of a leaf filter under name.
func (s *Store) Save(name string, raw []byte) {
	cp := make([]byte, len(raw))
	copy(cp, raw)
	_ = s.cache.Add(name, cp)
}

// Retrieve fetches a leaf filter's raw bytes, from the cache if present or
// from the on-disk database otherwise.
func (s *Store) Retrieve(name string) ([]byte, error) {
	if val, ok := s.cache.Get(name); ok {
		return val.([]byte), nil
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()
	item, err := s.tx.Get([]byte(name))
	if err != nil {
		return nil, fmt.Errorf("could not read filter %q: %w", name, err)
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return nil, fmt.Errorf("could not read filter %q: %w", name, err)
	}
	return raw, nil
}

// Close flushes any pending writes, waits for outstanding commits, and
// closes the underlying database.
func (s *Store) Close() error {
	// Evict every cached filter so the eviction callback writes it out.
	s.cache.Purge()
	close(s.done)
	s.wg.Wait()

	s.mutex.Lock()
	err := s.tx.Commit()
	s.mutex.Unlock()
	if err != nil {
		return fmt.Errorf("could not commit final transaction: %w", err)
	}

	_ = s.sema.Acquire(context.Background(), 16)
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("could not close filter database: %w", err)
	}
	close(s.err)

	var merr *multierror.Error
	for err := range s.err {
		merr = multierror.Append(merr, err)
	}
	return merr.ErrorOrNil()
}

func (s *Store) write(name string, raw []byte) error {
	select {
	case err := <-s.err:
		return fmt.Errorf("could not commit transaction: %w", err)
	default:
	}

	s.mutex.Lock()
	err := s.tx.Set([]byte(name), raw)
	if errors.Is(err, badger.ErrTxnTooBig) {
		_ = s.sema.Acquire(context.Background(), 1)
		s.tx.CommitWith(s.committed)
		s.tx = s.db.NewTransaction(true)
		err = s.tx.Set([]byte(name), raw)
	}
	s.mutex.Unlock()
	if errors.Is(err, badger.ErrDiscardedTxn) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not apply write: %w", err)
	}
	return nil
}

func (s *Store) committed(err error) {
	if err != nil {
		s.err <- err
	}
	s.sema.Release(1)
}

func (s *Store) flush() {
	defer s.wg.Done()

	ticker := time.NewTicker(persistInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mutex.Lock()
			_ = s.sema.Acquire(context.Background(), 1)
			s.tx.CommitWith(s.committed)
			s.tx = s.db.NewTransaction(true)
			s.mutex.Unlock()

		case <-s.done:
			return
		}
	}
}
