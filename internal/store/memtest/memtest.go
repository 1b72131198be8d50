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

// Package memtest is an in-memory store.Gateway used by every other
// package's unit tests, mirroring the teacher's in-memory filesystem fake
// (go/libraries/doltcore/table/untyped/csv/reader_test.go's
// filesys.NewInMemFS) so that component tests never need a live database.
package memtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/llevkovych/granula/internal/model"
	"github.com/llevkovych/granula/internal/store"
)

// Gateway is a single-process, mutex-guarded store.Gateway. A single
// exclusive lock over every method gives it the same linearizability
// ClaimChunk needs (P4) without modeling real SQL transactions.
type Gateway struct {
	mu     sync.Mutex
	files  map[string]*model.File
	chunks map[string]map[int]*model.Chunk // fileID -> index -> chunk
	recs   map[string][]model.ProcessedRecord
}

// New returns an empty in-memory Gateway.
func New() *Gateway {
	return &Gateway{
		files:  make(map[string]*model.File),
		chunks: make(map[string]map[int]*model.Chunk),
		recs:   make(map[string][]model.ProcessedRecord),
	}
}

func (g *Gateway) CreateFile(ctx context.Context, id, filename, path string) (*model.File, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := time.Now().UTC()
	f := &model.File{
		ID:        id,
		Filename:  filename,
		Path:      path,
		Status:    model.FileQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	g.files[id] = f
	g.chunks[id] = make(map[int]*model.Chunk)
	cp := *f
	return &cp, nil
}

func (g *Gateway) GetFile(ctx context.Context, id string) (*model.File, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	f, ok := g.files[id]
	if !ok {
		return nil, nil
	}
	cp := *f
	return &cp, nil
}

func (g *Gateway) UpdateFile(ctx context.Context, f *model.File) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	existing, ok := g.files[f.ID]
	if !ok {
		return nil
	}
	existing.Status = f.Status
	existing.ErrorMessage = f.ErrorMessage
	existing.Filename = f.Filename
	existing.UpdatedAt = time.Now().UTC()
	return nil
}

func (g *Gateway) CreateChunk(ctx context.Context, fileID string, index int, startCookie uint64, numRows uint32) (*model.Chunk, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	f, ok := g.files[fileID]
	if !ok {
		return nil, nil
	}
	now := time.Now().UTC()
	c := &model.Chunk{
		ID:         uuid.NewString(),
		FileID:     fileID,
		Index:      index,
		Status:     model.ChunkQueued,
		ResultMeta: model.ChunkResultMeta{StartCookie: startCookie, NumRows: numRows},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if g.chunks[fileID] == nil {
		g.chunks[fileID] = make(map[int]*model.Chunk)
	}
	g.chunks[fileID][index] = c
	if index+1 > f.TotalChunks {
		f.TotalChunks = index + 1
	}
	cp := *c
	return &cp, nil
}

func (g *Gateway) ClaimChunk(ctx context.Context, fileID string, index int) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.chunks[fileID][index]
	if !ok {
		return false, nil
	}
	if c.Status != model.ChunkQueued {
		return false, nil
	}
	c.Status = model.ChunkProcessing
	c.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (g *Gateway) CompleteChunk(ctx context.Context, fileID string, index int, records []model.ProcessedRecord) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.chunks[fileID][index]
	if !ok {
		return nil
	}
	for i := range records {
		records[i].ID = uuid.NewString()
		records[i].CreatedAt = time.Now().UTC()
	}
	g.recs[fileID] = append(g.recs[fileID], records...)
	c.Status = model.ChunkCompleted
	c.UpdatedAt = time.Now().UTC()
	if f, ok := g.files[fileID]; ok {
		f.ProcessedChunks++
	}
	return nil
}

func (g *Gateway) FailChunk(ctx context.Context, fileID string, index int, attempts int, errMsg string, final bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.chunks[fileID][index]
	if !ok {
		return nil
	}
	c.Attempts = attempts
	c.ErrorMessage = &errMsg
	c.UpdatedAt = time.Now().UTC()
	if final {
		c.Status = model.ChunkFailed
		if f, ok := g.files[fileID]; ok {
			f.FailedChunks++
		}
	} else {
		c.Status = model.ChunkQueued
	}
	return nil
}

func (g *Gateway) FinalizeFileIfDone(ctx context.Context, fileID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	f, ok := g.files[fileID]
	if !ok {
		return false, nil
	}
	if f.Status.Terminal() {
		return false, nil
	}
	if !f.Done() {
		return false, nil
	}
	f.Status = f.TerminalStatus()
	f.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (g *Gateway) RecoverInFlight(ctx context.Context) ([]store.RecoveredChunk, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []store.RecoveredChunk
	for fileID, byIndex := range g.chunks {
		for _, c := range byIndex {
			if c.Status == model.ChunkProcessing {
				c.Status = model.ChunkQueued
				c.UpdatedAt = time.Now().UTC()
				out = append(out, store.RecoveredChunk{
					FileID:      fileID,
					Index:       c.Index,
					StartCookie: c.ResultMeta.StartCookie,
					NumRows:     c.ResultMeta.NumRows,
					Attempts:    c.Attempts,
				})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FileID != out[j].FileID {
			return out[i].FileID < out[j].FileID
		}
		return out[i].Index < out[j].Index
	})
	return out, nil
}

func (g *Gateway) ListQueuedChunks(ctx context.Context) ([]store.RecoveredChunk, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []store.RecoveredChunk
	for fileID, byIndex := range g.chunks {
		for _, c := range byIndex {
			if c.Status == model.ChunkQueued {
				out = append(out, store.RecoveredChunk{
					FileID:      fileID,
					Index:       c.Index,
					StartCookie: c.ResultMeta.StartCookie,
					NumRows:     c.ResultMeta.NumRows,
					Attempts:    c.Attempts,
				})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FileID != out[j].FileID {
			return out[i].FileID < out[j].FileID
		}
		return out[i].Index < out[j].Index
	})
	return out, nil
}

func (g *Gateway) ListChunks(ctx context.Context, fileID string) ([]model.Chunk, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []model.Chunk
	for _, c := range g.chunks[fileID] {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (g *Gateway) CountChunksByStatus(ctx context.Context, fileID string, status model.ChunkStatus) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.chunks[fileID] {
		if c.Status == status {
			n++
		}
	}
	return n, nil
}

func (g *Gateway) ListResults(ctx context.Context, fileID string, offset, limit int) ([]model.ProcessedRecord, int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	all := append([]model.ProcessedRecord(nil), g.recs[fileID]...)
	sort.Slice(all, func(i, j int) bool {
		if all[i].ChunkIndex != all[j].ChunkIndex {
			return all[i].ChunkIndex < all[j].ChunkIndex
		}
		return all[i].ID < all[j].ID
	})
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (g *Gateway) DeleteChunksFromIndex(ctx context.Context, fileID string, fromIndex int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	byIndex := g.chunks[fileID]
	for idx := range byIndex {
		if idx >= fromIndex {
			delete(byIndex, idx)
		}
	}
	var kept []model.ProcessedRecord
	for _, r := range g.recs[fileID] {
		if r.ChunkIndex < fromIndex {
			kept = append(kept, r)
		}
	}
	g.recs[fileID] = kept
	return nil
}

func (g *Gateway) MaxPlannedIndex(ctx context.Context, fileID string) (int, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	max := -1
	for idx := range g.chunks[fileID] {
		if idx > max {
			max = idx
		}
	}
	return max, max >= 0, nil
}

func (g *Gateway) ListFilesByStatus(ctx context.Context, statuses ...model.FileStatus) ([]model.File, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	want := make(map[model.FileStatus]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}
	var out []model.File
	for _, f := range g.files {
		if want[f.Status] {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (g *Gateway) EnsureSchema(ctx context.Context) error { return nil }

func (g *Gateway) Close() error { return nil }
