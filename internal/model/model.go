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

// Package model defines the durable entities of the ingestion core: File,
// Chunk and ProcessedRecord, plus their status enums.
package model

import "time"

// FileStatus is the lifecycle status of an uploaded File.
type FileStatus string

const (
	FileQueued              FileStatus = "queued"
	FileProcessing          FileStatus = "processing"
	FileCompleted           FileStatus = "completed"
	FileCompletedWithErrors FileStatus = "completed_with_errors"
	FileFailed              FileStatus = "failed"
)

// Terminal reports whether s is a terminal File status.
func (s FileStatus) Terminal() bool {
	switch s {
	case FileCompleted, FileCompletedWithErrors, FileFailed:
		return true
	default:
		return false
	}
}

// ChunkStatus is the lifecycle status of a Chunk.
type ChunkStatus string

const (
	ChunkQueued     ChunkStatus = "queued"
	ChunkProcessing ChunkStatus = "processing"
	ChunkCompleted  ChunkStatus = "completed"
	ChunkFailed     ChunkStatus = "failed"
)

// Terminal reports whether s is a terminal Chunk status.
func (s ChunkStatus) Terminal() bool {
	return s == ChunkCompleted || s == ChunkFailed
}

// File represents one uploaded CSV blob and its processing totals.
//
// Invariant I1: ProcessedChunks+FailedChunks <= TotalChunks at all times.
// Invariant I2: a terminal Status is reached iff
// ProcessedChunks+FailedChunks == TotalChunks and TotalChunks > 0.
type File struct {
	ID              string     `db:"id" json:"id"`
	Filename        string     `db:"filename" json:"filename"`
	Path            string     `db:"path" json:"-"`
	Status          FileStatus `db:"status" json:"status"`
	TotalChunks     int        `db:"total_chunks" json:"total_chunks"`
	ProcessedChunks int        `db:"processed_chunks" json:"processed_chunks"`
	FailedChunks    int        `db:"failed_chunks" json:"failed_chunks"`
	ErrorMessage    *string    `db:"error_message" json:"error_message,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// Done reports whether every chunk planned for f has terminated, per I2.
func (f *File) Done() bool {
	return f.TotalChunks > 0 && f.ProcessedChunks+f.FailedChunks >= f.TotalChunks
}

// TerminalStatus computes the File status I2 requires once f.Done(), based
// on how many of its chunks failed versus completed.
func (f *File) TerminalStatus() FileStatus {
	switch {
	case f.FailedChunks == 0:
		return FileCompleted
	case f.ProcessedChunks == 0:
		return FileFailed
	default:
		return FileCompletedWithErrors
	}
}

// ChunkResultMeta is the typed payload stored in Chunk.ResultMeta: the byte
// offset a chunk's rows start at, and how many rows it covers.
type ChunkResultMeta struct {
	StartCookie uint64 `json:"start_cookie"`
	NumRows     uint32 `json:"num_rows"`
}

// Chunk is an ordered slice of one File's CSV rows.
//
// Invariant I3: (FileID, Index) is unique and Index ranges are contiguous
// starting at 0.
// Invariant I4: StartCookie for chunk k+1 lies strictly after the last row
// consumed for chunk k.
type Chunk struct {
	ID           string          `db:"id" json:"id"`
	FileID       string          `db:"file_id" json:"file_id"`
	Index        int             `db:"index" json:"index"`
	Status       ChunkStatus     `db:"status" json:"status"`
	Attempts     int             `db:"attempts" json:"attempts"`
	ResultMeta   ChunkResultMeta `db:"-" json:"result_meta"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// ProcessedRecord is one output row produced from a Chunk.
//
// Invariant I5: records for a given (FileID, ChunkIndex) are inserted
// atomically together with the chunk's transition to completed.
type ProcessedRecord struct {
	ID         string    `db:"id" json:"id"`
	FileID     string    `db:"file_id" json:"file_id"`
	ChunkIndex int       `db:"chunk_index" json:"chunk_index"`
	Data       []string  `db:"-" json:"data"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
