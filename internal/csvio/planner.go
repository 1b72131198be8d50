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

package csvio

import (
	"context"
	"io"

	"github.com/llevkovych/granula/internal/ingesterr"
)

// ChunkDescriptor is one (index, start_cookie, num_rows) triple the
// planner emits, per spec §4.2 step 4–5.
type ChunkDescriptor struct {
	Index       int
	StartCookie uint64
	NumRows     uint32
}

// EmitFunc is called once per chunk the planner carves, in index order. A
// non-nil error aborts the scan.
type EmitFunc func(ctx context.Context, desc ChunkDescriptor) error

// Plan performs the single-pass scan of spec §4.2: it reads r from the
// start, treats the first row as a header (excluded from chunking, per
// SPEC_FULL.md's resolution of Open Question 1), and emits a
// ChunkDescriptor every chunkSize data rows plus a final tail chunk for any
// remainder. It returns the total number of chunks emitted.
//
// csv.Reader.InputOffset reports the byte offset immediately before its
// next Read call, which is exactly the start_cookie invariant (I4) needs:
// seeking there and re-parsing yields the same row.
func Plan(ctx context.Context, d *Dialect, r io.Reader, chunkSize int, emit EmitFunc) (int, error) {
	if chunkSize < 1 {
		chunkSize = 1
	}
	cr := d.newReader(r)

	if d.HasHeaderLine {
		if _, err := cr.Read(); err != nil {
			if err == io.EOF {
				return 0, ingesterr.New(ingesterr.CsvStructural, "empty file")
			}
			return 0, ingesterr.Wrap(ingesterr.CsvStructural, err, "read header")
		}
	}

	index := 0
	rowsInChunk := 0
	var chunkStart uint64

	for {
		cookieBefore := uint64(cr.InputOffset())
		if rowsInChunk == 0 {
			chunkStart = cookieBefore
		}

		_, err := cr.Read()
		if err == io.EOF {
			if rowsInChunk > 0 {
				if err := emit(ctx, ChunkDescriptor{Index: index, StartCookie: chunkStart, NumRows: uint32(rowsInChunk)}); err != nil {
					return index, err
				}
				index++
			}
			break
		}
		if err != nil {
			return index, ingesterr.Wrap(ingesterr.CsvStructural, err, "parse csv")
		}

		rowsInChunk++
		if rowsInChunk == chunkSize {
			if err := emit(ctx, ChunkDescriptor{Index: index, StartCookie: chunkStart, NumRows: uint32(rowsInChunk)}); err != nil {
				return index, err
			}
			index++
			rowsInChunk = 0
		}
	}

	return index, nil
}
