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

// Package blobstore is the byte-addressable random-access file store spec
// §6 describes: a directory of opaque files keyed by file_id plus the
// original extension.
package blobstore

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/llevkovych/granula/internal/ingesterr"
)

// Store is the blob store interface the planner, reader and admission path
// depend on.
type Store interface {
	// Save streams src to a new blob keyed by id+ext and returns its path.
	Save(ctx context.Context, id, ext string, src io.Reader) (path string, size int64, err error)
	// Open returns a random-access reader for the blob at path.
	Open(ctx context.Context, path string) (io.ReadSeekCloser, error)
	// Remove deletes the blob at path.
	Remove(ctx context.Context, path string) error
	// Stat reports whether the blob at path exists.
	Stat(ctx context.Context, path string) (exists bool, size int64, err error)
}

// DirStore is a Store backed by a directory on the local filesystem.
type DirStore struct {
	root string
}

// NewDirStore returns a DirStore rooted at dir, creating it if necessary.
func NewDirStore(dir string) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create blob store root")
	}
	return &DirStore{root: dir}, nil
}

func (s *DirStore) pathFor(id, ext string) string {
	name := id
	if ext != "" {
		name += ext
	}
	return filepath.Join(s.root, name)
}

func (s *DirStore) Save(ctx context.Context, id, ext string, src io.Reader) (string, int64, error) {
	path := s.pathFor(id, ext)
	f, err := os.Create(path)
	if err != nil {
		return "", 0, errors.Wrap(err, "create blob")
	}
	defer f.Close()

	n, err := io.Copy(f, src)
	if err != nil {
		return "", 0, errors.Wrap(err, "write blob")
	}
	if err := f.Sync(); err != nil {
		return "", 0, errors.Wrap(err, "sync blob")
	}
	return path, n, nil
}

func (s *DirStore) Open(ctx context.Context, path string) (io.ReadSeekCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ingesterr.Wrap(ingesterr.BlobMissing, err, "blob not found")
		}
		return nil, errors.Wrap(err, "open blob")
	}
	return f, nil
}

func (s *DirStore) Remove(ctx context.Context, path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove blob")
	}
	return nil
}

func (s *DirStore) Stat(ctx context.Context, path string) (bool, int64, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, errors.Wrap(err, "stat blob")
	}
	return true, info.Size(), nil
}
