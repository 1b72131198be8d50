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
	"fmt"
	"io"

	"github.com/llevkovych/granula/internal/ingesterr"
)

// ValidationResult summarizes a structural validation pass over a CSV
// blob (spec §4.9): non-empty header, constant column count across rows.
type ValidationResult struct {
	Columns  int
	DataRows int
}

// ValidateStructure scans r front to back checking that every row has the
// same column count as the header, and that the header itself is
// non-empty. It never rewinds r; callers needing both validation and a
// subsequent plan must open a fresh reader for each pass.
func ValidateStructure(d *Dialect, r io.Reader) (*ValidationResult, error) {
	cr := d.newReader(r)

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ingesterr.New(ingesterr.CsvStructural, "empty file")
	}
	if err != nil {
		return nil, ingesterr.Wrap(ingesterr.CsvStructural, err, "read header")
	}
	if len(header) == 0 {
		return nil, ingesterr.New(ingesterr.CsvStructural, "empty header")
	}
	width := len(header)

	rows := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, ingesterr.Wrap(ingesterr.CsvStructural, err, "parse csv")
		}
		if len(row) != width {
			return nil, ingesterr.New(ingesterr.CsvStructural,
				fmt.Sprintf("row %d has %d columns, expected %d", rows+2, len(row), width))
		}
		rows++
	}

	return &ValidationResult{Columns: width, DataRows: rows}, nil
}
