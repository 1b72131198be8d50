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

// Package ingesterr classifies the failure taxonomy of the ingestion core
// (spec §7): which errors reject synchronously at admission, which land a
// File or Chunk in a terminal state, and which are retried with backoff.
package ingesterr

import (
	"errors"
	"fmt"
)

// Kind is one row of the error taxonomy.
type Kind int

const (
	// ClientInput is raised at upload admission; it never persists state.
	ClientInput Kind = iota
	// BlobMissing means the planner or executor could not find the file
	// on disk anymore; no retries, the File goes to failed.
	BlobMissing
	// CsvStructural means admission-time or planner-time CSV shape
	// validation failed; no chunks are created.
	CsvStructural
	// TransientIO covers chunk read or commit I/O errors eligible for
	// retry with backoff.
	TransientIO
	// TransientDB covers commit-time deadlocks or disconnects, retried
	// the same way as TransientIO.
	TransientDB
	// PermanentChunk means retry attempts are exhausted; the chunk fails
	// terminally but the file continues.
	PermanentChunk
	// Fatal covers schema/init failures; the process should exit
	// non-zero.
	Fatal
)

func (k Kind) String() string {
	switch k {
	case ClientInput:
		return "client_input"
	case BlobMissing:
		return "blob_missing"
	case CsvStructural:
		return "csv_structural"
	case TransientIO:
		return "transient_io"
	case TransientDB:
		return "transient_db"
	case PermanentChunk:
		return "permanent_chunk"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is a classified ingestion failure.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap builds an Error of the given kind around an underlying cause.
func Wrap(kind Kind, err error, msg string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Is reports whether err is an *Error of the given kind, looking through
// any wrapping.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Retryable reports whether an error of this kind should be retried with
// backoff rather than failing a chunk immediately.
func (k Kind) Retryable() bool {
	return k == TransientIO || k == TransientDB
}
