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

// Package workerpool runs the Chunk Executor state machine of spec §4.6
// on top of a bounded pool of goroutines (spec §4.5).
package workerpool

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/llevkovych/granula/internal/backoff"
	"github.com/llevkovych/granula/internal/blobstore"
	"github.com/llevkovych/granula/internal/csvio"
	"github.com/llevkovych/granula/internal/ingesterr"
	"github.com/llevkovych/granula/internal/model"
	"github.com/llevkovych/granula/internal/queue"
	"github.com/llevkovych/granula/internal/store"
)

// Executor runs the claim -> read -> commit -> error -> finalize state
// machine for one Task. It owns no goroutines of its own; Pool calls
// Run once per popped Task.
type Executor struct {
	gw               store.Gateway
	blobs            blobstore.Store
	dialect          *csvio.Dialect
	backoff          *backoff.Policy
	maxRetries       int
	requeue          func(*queue.Task)
	deleteOnComplete bool
	log              *logrus.Logger
}

// NewExecutor builds an Executor. requeue is called to put a task back on
// the priority queue after a transient failure's backoff sleep.
// deleteOnComplete mirrors DELETE_FILE_ON_COMPLETE (spec §6): once a file
// reaches a terminal status, its blob is removed from the blob store.
func NewExecutor(gw store.Gateway, blobs blobstore.Store, dialect *csvio.Dialect, bp *backoff.Policy, maxRetries int, requeue func(*queue.Task), deleteOnComplete bool, log *logrus.Logger) *Executor {
	return &Executor{gw: gw, blobs: blobs, dialect: dialect, backoff: bp, maxRetries: maxRetries, requeue: requeue, deleteOnComplete: deleteOnComplete, log: log}
}

// Run executes exactly one Task to a terminal outcome: claimed-and-done,
// claimed-and-retried, or not claimed at all (duplicate/stale task).
func (e *Executor) Run(ctx context.Context, t *queue.Task) {
	claimed, err := e.gw.ClaimChunk(ctx, t.FileID, t.Index)
	if err != nil {
		e.log.WithError(err).WithFields(logrus.Fields{"file_id": t.FileID, "index": t.Index}).
			Error("claim_chunk failed")
		return
	}
	if !claimed {
		// Another worker owns it, or it is already terminal: the
		// idempotence guard of spec §4.6.
		return
	}

	defer func() {
		finalized, err := e.gw.FinalizeFileIfDone(ctx, t.FileID)
		if err != nil {
			e.log.WithError(err).WithField("file_id", t.FileID).Error("finalize_file_if_done failed")
			return
		}
		if finalized && e.deleteOnComplete {
			e.removeBlob(ctx, t.FileID)
		}
	}()

	file, err := e.gw.GetFile(ctx, t.FileID)
	if err != nil || file == nil {
		e.fail(ctx, t, "file record missing")
		return
	}

	blob, err := e.blobs.Open(ctx, file.Path)
	if err != nil {
		e.handleError(ctx, t, err)
		return
	}
	rows, err := csvio.ReadChunk(e.dialect, blob, t.StartCookie, t.NumRows)
	closeErr := blob.Close()
	if err != nil {
		e.handleError(ctx, t, err)
		return
	}
	if closeErr != nil {
		e.log.WithError(closeErr).Warn("error closing blob after chunk read")
	}

	records := make([]model.ProcessedRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, model.ProcessedRecord{
			ID:         uuid.NewString(),
			FileID:     t.FileID,
			ChunkIndex: t.Index,
			Data:       row,
		})
	}

	if err := e.gw.CompleteChunk(ctx, t.FileID, t.Index, records); err != nil {
		e.handleError(ctx, t, err)
		return
	}
}

// handleError implements the error arm of §4.6: increment attempts, and
// either schedule a backoff-delayed requeue or fail the chunk terminally.
func (e *Executor) handleError(ctx context.Context, t *queue.Task, cause error) {
	t.Attempts++
	if classify(cause).Retryable() && t.Attempts < e.maxRetries {
		delay := e.backoff.Delay(t.Attempts)
		if err := e.gw.FailChunk(ctx, t.FileID, t.Index, t.Attempts, cause.Error(), false); err != nil {
			e.log.WithError(err).Error("fail_chunk (retryable) failed")
			return
		}
		e.log.WithFields(logrus.Fields{
			"file_id": t.FileID, "index": t.Index, "attempts": t.Attempts, "delay": delay,
		}).Warn("chunk failed, scheduling retry")
		go func() {
			timer := time.NewTimer(delay)
			defer timer.Stop()
			select {
			case <-timer.C:
				e.requeue(t)
			case <-ctx.Done():
			}
		}()
		return
	}
	e.fail(ctx, t, cause.Error())
}

// removeBlob deletes a file's blob once it has reached a terminal status,
// regardless of whether that status is completed, failed, or
// completed-with-errors. A removal failure is logged, not fatal: the row
// is already finalized either way.
func (e *Executor) removeBlob(ctx context.Context, fileID string) {
	f, err := e.gw.GetFile(ctx, fileID)
	if err != nil || f == nil {
		return
	}
	if err := e.blobs.Remove(ctx, f.Path); err != nil {
		e.log.WithError(err).WithField("file_id", fileID).Warn("failed to delete file after processing")
		return
	}
	e.log.WithField("file_id", fileID).Info("deleted file after processing")
}

func (e *Executor) fail(ctx context.Context, t *queue.Task, msg string) {
	if err := e.gw.FailChunk(ctx, t.FileID, t.Index, t.Attempts, msg, true); err != nil {
		e.log.WithError(err).Error("fail_chunk (terminal) failed")
	}
}

// classify maps a raw error into the ingestion error taxonomy so callers
// can decide retryability without re-inspecting the underlying cause.
func classify(err error) ingesterr.Kind {
	switch {
	case ingesterr.Is(err, ingesterr.BlobMissing):
		return ingesterr.BlobMissing
	case ingesterr.Is(err, ingesterr.TransientDB):
		return ingesterr.TransientDB
	default:
		return ingesterr.TransientIO
	}
}
