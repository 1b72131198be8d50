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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llevkovych/granula/internal/ingesterr"
)

func TestValidateStructureOK(t *testing.T) {
	res, err := ValidateStructure(NewDialect(), strings.NewReader("id,name\n1,A\n2,B\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Columns)
	assert.Equal(t, 2, res.DataRows)
}

func TestValidateStructureEmptyFile(t *testing.T) {
	_, err := ValidateStructure(NewDialect(), strings.NewReader(""))
	assert.True(t, ingesterr.Is(err, ingesterr.CsvStructural))
}

func TestValidateStructureRaggedRow(t *testing.T) {
	_, err := ValidateStructure(NewDialect(), strings.NewReader("id,name\n1,A\n2\n"))
	assert.True(t, ingesterr.Is(err, ingesterr.CsvStructural))
}
