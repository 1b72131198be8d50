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

// Package store defines the Persistence Gateway: the narrow, transactional
// API (spec §4.1) through which every other component touches File, Chunk
// and ProcessedRecord rows. Implementations live in subpackages
// (postgres, sqlite, memtest); callers only ever depend on the Gateway
// interface here.
package store

import (
	"context"

	"github.com/llevkovych/granula/internal/model"
)

// RecoveredChunk is one row handed back by RecoverInFlight: enough to
// rebuild a queue.Task without re-reading the Chunk row.
type RecoveredChunk struct {
	FileID      string
	Index       int
	StartCookie uint64
	NumRows     uint32
	Attempts    int
}

// Gateway is the Persistence Gateway of spec §4.1. Every method is either a
// single statement or wraps its statements in one transaction; no method
// leaves the database in an intermediate state visible to another caller.
type Gateway interface {
	// CreateFile inserts a new File row with status=queued.
	CreateFile(ctx context.Context, id, filename, path string) (*model.File, error)

	// GetFile fetches a File by id. It returns (nil, nil) if not found.
	GetFile(ctx context.Context, id string) (*model.File, error)

	// UpdateFile persists mutable File fields (status, error_message).
	// Counter fields (ProcessedChunks/FailedChunks/TotalChunks) are never
	// written through UpdateFile; they're only ever moved by atomic SQL
	// increments in CreateChunk/CompleteChunk/FailChunk.
	UpdateFile(ctx context.Context, f *model.File) error

	// CreateChunk inserts a Chunk row (status=queued) and, in the same
	// transaction, advances file.total_chunks to max(current, index+1).
	CreateChunk(ctx context.Context, fileID string, index int, startCookie uint64, numRows uint32) (*model.Chunk, error)

	// ClaimChunk atomically transitions a chunk queued->processing. It
	// returns false (not an error) if the chunk is already processing or
	// terminal — the idempotence guard retries and duplicate executions
	// rely on.
	ClaimChunk(ctx context.Context, fileID string, index int) (bool, error)

	// CompleteChunk is one transaction: insert every record, transition
	// the chunk to completed, and increment file.processed_chunks by 1.
	CompleteChunk(ctx context.Context, fileID string, index int, records []model.ProcessedRecord) error

	// FailChunk marks a chunk failed (final=true) or back to queued
	// (final=false) with the given error message and attempt count. If
	// final, file.failed_chunks is incremented in the same transaction.
	FailChunk(ctx context.Context, fileID string, index int, attempts int, errMsg string, final bool) error

	// FinalizeFileIfDone atomically finalizes a File if
	// processed+failed == total, total > 0, and the file is not already
	// terminal. Returns whether it finalized the file on this call.
	FinalizeFileIfDone(ctx context.Context, fileID string) (bool, error)

	// RecoverInFlight resets every chunk in `processing` back to `queued`
	// and returns them for re-enqueue. Called once at startup.
	RecoverInFlight(ctx context.Context) ([]RecoveredChunk, error)

	// ListQueuedChunks returns every chunk still in `queued` status across
	// every file, for re-enqueue onto the in-memory priority queue at
	// startup (which otherwise starts empty and forgets them). Called
	// once at startup alongside RecoverInFlight.
	ListQueuedChunks(ctx context.Context) ([]RecoveredChunk, error)

	// ListChunks returns every Chunk row for a file, ordered by index.
	ListChunks(ctx context.Context, fileID string) ([]model.Chunk, error)

	// CountChunksByStatus returns the live count of chunks in a given
	// status for a file. /status does not call it; it reports the File
	// row's counters.
	CountChunksByStatus(ctx context.Context, fileID string, status model.ChunkStatus) (int, error)

	// ListResults returns a page of ProcessedRecords for a file, ordered
	// by (chunk_index ASC, id ASC), plus the total row count.
	ListResults(ctx context.Context, fileID string, offset, limit int) ([]model.ProcessedRecord, int, error)

	// DeleteChunksFromIndex deletes every Chunk (and cascades its
	// ProcessedRecords) with index >= fromIndex for a file. Used by the
	// lifecycle manager's simplified mid-scan-crash recovery (spec §4.7).
	DeleteChunksFromIndex(ctx context.Context, fileID string, fromIndex int) error

	// MaxPlannedIndex returns the highest Chunk.Index persisted for a
	// file, and whether any chunk exists at all.
	MaxPlannedIndex(ctx context.Context, fileID string) (int, bool, error)

	// ListFilesByStatus returns every File row in one of the given
	// statuses (used at startup to find files to resume).
	ListFilesByStatus(ctx context.Context, statuses ...model.FileStatus) ([]model.File, error)

	// EnsureSchema creates the files/chunks/processed_records tables and
	// their indices if they do not already exist.
	EnsureSchema(ctx context.Context) error

	// Close releases the underlying connection pool.
	Close() error
}
