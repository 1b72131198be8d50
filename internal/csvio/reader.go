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
	"io"

	"github.com/llevkovych/granula/internal/ingesterr"
)

// ReadChunk implements the Chunk Reader of spec §4.3: seek to startCookie,
// parse CSV from that byte, and consume up to numRows rows. Fewer rows are
// returned on EOF; it never reads past numRows rows, so two chunks'
// ReadChunk calls never cross each other's boundary.
func ReadChunk(d *Dialect, blob io.ReadSeeker, startCookie uint64, numRows uint32) ([][]string, error) {
	if _, err := blob.Seek(int64(startCookie), io.SeekStart); err != nil {
		return nil, ingesterr.Wrap(ingesterr.TransientIO, err, "seek to chunk start")
	}

	cr := d.newReader(blob)
	rows := make([][]string, 0, numRows)
	for i := uint32(0); i < numRows; i++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, ingesterr.Wrap(ingesterr.TransientIO, err, "read chunk row")
		}
		rows = append(rows, row)
	}
	return rows, nil
}
