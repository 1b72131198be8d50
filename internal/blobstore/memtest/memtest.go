// Copyright 2026 The Granula Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package memtest is an in-memory blobstore.Store, mirroring the teacher's
// filesys.NewInMemFS fake used throughout
// go/libraries/doltcore/table/untyped/csv/reader_test.go so CSV-processing
// tests never touch the real filesystem.
package memtest

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/llevkovych/granula/internal/ingesterr"
)

// Store is an in-memory blobstore.Store keyed by path.
type Store struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

// New returns an empty in-memory Store.
func New() *Store {
	return &Store{blobs: make(map[string][]byte)}
}

// Put seeds the store with content at an explicit path, for tests that
// want to control the path directly rather than going through Save.
func (s *Store) Put(path string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[path] = content
}

func (s *Store) Save(ctx context.Context, id, ext string, src io.Reader) (string, int64, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return "", 0, err
	}
	path := id + ext
	s.mu.Lock()
	s.blobs[path] = data
	s.mu.Unlock()
	return path, int64(len(data)), nil
}

func (s *Store) Open(ctx context.Context, path string) (io.ReadSeekCloser, error) {
	s.mu.Lock()
	data, ok := s.blobs[path]
	s.mu.Unlock()
	if !ok {
		return nil, ingesterr.New(ingesterr.BlobMissing, "blob not found: "+path)
	}
	return &memFile{Reader: bytes.NewReader(data)}, nil
}

func (s *Store) Remove(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, path)
	return nil
}

func (s *Store) Stat(ctx context.Context, path string) (bool, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blobs[path]
	if !ok {
		return false, 0, nil
	}
	return true, int64(len(data)), nil
}

type memFile struct {
	*bytes.Reader
}

func (m *memFile) Close() error { return nil }
