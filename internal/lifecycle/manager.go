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

// Package lifecycle is the File Lifecycle Manager of spec §4.7: admits
// new files, drives the Planner, and recovers in-flight work at startup.
package lifecycle

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/llevkovych/granula/internal/blobstore"
	"github.com/llevkovych/granula/internal/csvio"
	"github.com/llevkovych/granula/internal/model"
	"github.com/llevkovych/granula/internal/queue"
	"github.com/llevkovych/granula/internal/store"
	"github.com/llevkovych/granula/internal/workerpool"
)

// Manager owns the File admission and recovery path. It holds no HTTP or
// worker-pool knowledge beyond what it needs to enqueue tasks.
type Manager struct {
	gw      store.Gateway
	blobs   blobstore.Store
	pool    *workerpool.Pool
	dialect *csvio.Dialect
	chunkSz int
	log     *logrus.Logger

	mu         sync.Mutex
	priorities map[string]int // fileID -> priority chosen at upload time
}

// NewManager builds a Manager.
func NewManager(gw store.Gateway, blobs blobstore.Store, pool *workerpool.Pool, dialect *csvio.Dialect, chunkSize int, log *logrus.Logger) *Manager {
	return &Manager{
		gw: gw, blobs: blobs, pool: pool, dialect: dialect, chunkSz: chunkSize, log: log,
		priorities: make(map[string]int),
	}
}

// AdmitFile persists a new File row and runs its planner. filename is
// display-only; path is where the blob already lives in the store.
// Priority (0..10, higher is more urgent) is applied to every chunk this
// file's planner emits; it is not itself persisted on the File row.
func (m *Manager) AdmitFile(ctx context.Context, filename, path string, priority int) (*model.File, error) {
	id := uuid.NewString()
	f, err := m.gw.CreateFile(ctx, id, filename, path)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.priorities[f.ID] = priority
	m.mu.Unlock()
	go m.RunPlanner(context.Background(), f.ID)
	return f, nil
}

func (m *Manager) priorityFor(fileID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.priorities[fileID]
}

// RunPlanner executes the Chunk Planner for fileID: transition to
// processing, validate structure, scan and emit chunks, and move to
// failed on any structural error.
func (m *Manager) RunPlanner(ctx context.Context, fileID string) {
	f, err := m.gw.GetFile(ctx, fileID)
	if err != nil || f == nil {
		m.log.WithField("file_id", fileID).WithError(err).Error("planner: file not found")
		return
	}

	f.Status = model.FileProcessing
	if err := m.gw.UpdateFile(ctx, f); err != nil {
		m.log.WithError(err).Error("planner: update file to processing failed")
		return
	}

	blob, err := m.blobs.Open(ctx, f.Path)
	if err != nil {
		m.failFile(ctx, f, err.Error())
		return
	}
	defer blob.Close()

	if _, err := csvio.ValidateStructure(m.dialect, blob); err != nil {
		m.failFile(ctx, f, err.Error())
		return
	}
	if _, err := blob.Seek(0, 0); err != nil {
		m.failFile(ctx, f, err.Error())
		return
	}

	priority := m.priorityFor(fileID)
	_, err = csvio.Plan(ctx, m.dialect, blob, m.chunkSz, func(ctx context.Context, d csvio.ChunkDescriptor) error {
		if _, err := m.gw.CreateChunk(ctx, fileID, d.Index, d.StartCookie, d.NumRows); err != nil {
			return err
		}
		m.pool.Enqueue(&queue.Task{
			FileID:      fileID,
			Index:       d.Index,
			StartCookie: d.StartCookie,
			NumRows:     d.NumRows,
			Priority:    priority,
		})
		return nil
	})
	if err != nil {
		m.failFile(ctx, f, err.Error())
	}
}

func (m *Manager) failFile(ctx context.Context, f *model.File, msg string) {
	f.Status = model.FileFailed
	f.ErrorMessage = &msg
	if err := m.gw.UpdateFile(ctx, f); err != nil {
		m.log.WithError(err).Error("planner: mark file failed failed")
	}
}

// Recover runs the startup sequence of spec §4.7, steps 3-4: reclaim
// processing chunks, re-enqueue them together with every chunk still
// queued, and re-plan from scratch any file that is still queued or has no
// chunk rows. A file in processing that already has chunk rows is resumed
// from those rows and is not re-planned, so rows its planner had not yet
// turned into chunks before a crash are not picked up.
func (m *Manager) Recover(ctx context.Context) error {
	recovered, err := m.gw.RecoverInFlight(ctx)
	if err != nil {
		return fmt.Errorf("recover_in_flight: %w", err)
	}
	inFlight := make(map[string]bool, len(recovered))
	for _, rc := range recovered {
		inFlight[fmt.Sprintf("%s/%d", rc.FileID, rc.Index)] = true
		m.pool.Enqueue(&queue.Task{
			FileID:      rc.FileID,
			Index:       rc.Index,
			StartCookie: rc.StartCookie,
			NumRows:     rc.NumRows,
			Attempts:    rc.Attempts,
		})
	}

	pending, err := m.gw.ListFilesByStatus(ctx, model.FileQueued, model.FileProcessing)
	if err != nil {
		return fmt.Errorf("list files by status: %w", err)
	}
	replanned := make(map[string]bool)
	for _, f := range pending {
		_, hasChunks, err := m.gw.MaxPlannedIndex(ctx, f.ID)
		if err != nil {
			m.log.WithError(err).WithField("file_id", f.ID).Error("recover: max_planned_index failed")
			continue
		}
		if f.Status == model.FileQueued || !hasChunks {
			// Never planned, or the planner crashed before writing
			// a single chunk: re-plan from scratch is safe either
			// way (spec §4.7's allowed simplification).
			if err := m.gw.DeleteChunksFromIndex(ctx, f.ID, 0); err != nil {
				m.log.WithError(err).WithField("file_id", f.ID).Error("recover: delete chunks failed")
				continue
			}
			replanned[f.ID] = true
			go m.RunPlanner(context.Background(), f.ID)
		}
	}

	// Chunks already `queued` at crash time were never touched by
	// RecoverInFlight (which only reclaims `processing` rows), and the
	// in-memory priority queue starts empty on every process start: without
	// this, such a chunk is durable but never claimed again. Skip files
	// just re-planned above; their planner is re-emitting fresh tasks for
	// every chunk it writes. Also skip chunks RecoverInFlight just reset to
	// `queued`; they were enqueued above.
	queued, err := m.gw.ListQueuedChunks(ctx)
	if err != nil {
		return fmt.Errorf("list queued chunks: %w", err)
	}
	for _, rc := range queued {
		if replanned[rc.FileID] || inFlight[fmt.Sprintf("%s/%d", rc.FileID, rc.Index)] {
			continue
		}
		m.pool.Enqueue(&queue.Task{
			FileID:      rc.FileID,
			Index:       rc.Index,
			StartCookie: rc.StartCookie,
			NumRows:     rc.NumRows,
			Attempts:    rc.Attempts,
		})
	}
	return nil
}
