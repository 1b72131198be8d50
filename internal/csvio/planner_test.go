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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanSmallFileSingleChunk(t *testing.T) {
	content := "id,name\n1,A\n2,B\n3,C\n"
	var descs []ChunkDescriptor
	total, err := Plan(context.Background(), NewDialect(), strings.NewReader(content), 1000, func(_ context.Context, d ChunkDescriptor) error {
		descs = append(descs, d)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, descs, 1)
	assert.Equal(t, 0, descs[0].Index)
	assert.Equal(t, uint32(3), descs[0].NumRows)
}

func TestPlanChunkBoundary(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("id,name\n")
	for i := 0; i < 23; i++ {
		sb.WriteString("row,value\n")
	}

	var descs []ChunkDescriptor
	total, err := Plan(context.Background(), NewDialect(), strings.NewReader(sb.String()), 5, func(_ context.Context, d ChunkDescriptor) error {
		descs = append(descs, d)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 5, total)

	sum := uint32(0)
	for i, d := range descs {
		assert.Equal(t, i, d.Index)
		sum += d.NumRows
	}
	assert.EqualValues(t, 23, sum)
	assert.Equal(t, uint32(3), descs[4].NumRows, "tail chunk carries the remainder")
}

func TestPlanExactMultipleHasNoEmptyTailChunk(t *testing.T) {
	content := "id\n1\n2\n3\n4\n"
	var descs []ChunkDescriptor
	total, err := Plan(context.Background(), NewDialect(), strings.NewReader(content), 2, func(_ context.Context, d ChunkDescriptor) error {
		descs = append(descs, d)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, descs, 2)
}

func TestPlanStartCookiesAreMonotonicAndSeekable(t *testing.T) {
	content := "id,name\n1,A\n2,B\n3,C\n4,D\n"
	var descs []ChunkDescriptor
	_, err := Plan(context.Background(), NewDialect(), strings.NewReader(content), 2, func(_ context.Context, d ChunkDescriptor) error {
		descs = append(descs, d)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, descs, 2)
	assert.Less(t, descs[0].StartCookie, descs[1].StartCookie)

	rows, err := ReadChunk(NewDialect(), strings.NewReader(content), descs[1].StartCookie, descs[1].NumRows)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"3", "C"}, {"4", "D"}}, rows)
}

func TestPlanEmptyFileIsStructuralError(t *testing.T) {
	_, err := Plan(context.Background(), NewDialect(), strings.NewReader(""), 10, func(context.Context, ChunkDescriptor) error { return nil })
	assert.Error(t, err)
}

func TestPlanNoHeaderLine(t *testing.T) {
	content := "1,A\n2,B\n"
	var descs []ChunkDescriptor
	total, err := Plan(context.Background(), NewDialect().SetHasHeaderLine(false), strings.NewReader(content), 10, func(_ context.Context, d ChunkDescriptor) error {
		descs = append(descs, d)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, uint32(2), descs[0].NumRows)
}
