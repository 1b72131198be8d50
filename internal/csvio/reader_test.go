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
)

func TestReadChunkFewerRowsOnEOF(t *testing.T) {
	content := "id,name\n1,A\n2,B\n"
	rows, err := ReadChunk(NewDialect(), strings.NewReader(content), 8, 10)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "A"}, {"2", "B"}}, rows)
}

func TestReadChunkDoesNotReadPastNumRows(t *testing.T) {
	content := "id,name\n1,A\n2,B\n3,C\n"
	rows, err := ReadChunk(NewDialect(), strings.NewReader(content), 8, 1)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "A"}}, rows)
}
