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

package memtest

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llevkovych/granula/internal/model"
)

func TestCreateFileAndChunkAdvancesTotal(t *testing.T) {
	ctx := context.Background()
	g := New()

	_, err := g.CreateFile(ctx, "f1", "a.csv", "/tmp/a.csv")
	require.NoError(t, err)

	_, err = g.CreateChunk(ctx, "f1", 0, 0, 5)
	require.NoError(t, err)
	_, err = g.CreateChunk(ctx, "f1", 1, 120, 5)
	require.NoError(t, err)

	f, err := g.GetFile(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, 2, f.TotalChunks)
}

// TestClaimChunkLinearizable is property P4: under K concurrent callers for
// the same (file, index), exactly one returns true.
func TestClaimChunkLinearizable(t *testing.T) {
	ctx := context.Background()
	g := New()
	_, err := g.CreateFile(ctx, "f1", "a.csv", "/tmp/a.csv")
	require.NoError(t, err)
	_, err = g.CreateChunk(ctx, "f1", 0, 0, 5)
	require.NoError(t, err)

	const k = 50
	var wg sync.WaitGroup
	results := make([]bool, k)
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := g.ClaimChunk(ctx, "f1", 0)
			assert.NoError(t, err)
			results[i] = ok
		}(i)
	}
	wg.Wait()

	trueCount := 0
	for _, r := range results {
		if r {
			trueCount++
		}
	}
	assert.Equal(t, 1, trueCount)
}

func TestCompleteChunkThenFinalize(t *testing.T) {
	ctx := context.Background()
	g := New()
	_, err := g.CreateFile(ctx, "f1", "a.csv", "/tmp/a.csv")
	require.NoError(t, err)
	_, err = g.CreateChunk(ctx, "f1", 0, 0, 3)
	require.NoError(t, err)

	ok, err := g.ClaimChunk(ctx, "f1", 0)
	require.NoError(t, err)
	require.True(t, ok)

	err = g.CompleteChunk(ctx, "f1", 0, []model.ProcessedRecord{
		{FileID: "f1", ChunkIndex: 0, Data: []string{"1", "a"}},
		{FileID: "f1", ChunkIndex: 0, Data: []string{"2", "b"}},
	})
	require.NoError(t, err)

	finalized, err := g.FinalizeFileIfDone(ctx, "f1")
	require.NoError(t, err)
	assert.True(t, finalized)

	f, err := g.GetFile(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, model.FileCompleted, f.Status)
	assert.Equal(t, 1, f.ProcessedChunks)

	results, total, err := g.ListResults(ctx, "f1", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, results, 2)
}

func TestFailChunkTerminalIncrementsFailedChunks(t *testing.T) {
	ctx := context.Background()
	g := New()
	_, err := g.CreateFile(ctx, "f1", "a.csv", "/tmp/a.csv")
	require.NoError(t, err)
	_, err = g.CreateChunk(ctx, "f1", 0, 0, 3)
	require.NoError(t, err)

	ok, err := g.ClaimChunk(ctx, "f1", 0)
	require.NoError(t, err)
	require.True(t, ok)

	err = g.FailChunk(ctx, "f1", 0, 3, "boom", true)
	require.NoError(t, err)

	finalized, err := g.FinalizeFileIfDone(ctx, "f1")
	require.NoError(t, err)
	assert.True(t, finalized)

	f, err := g.GetFile(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, model.FileFailed, f.Status)
	assert.Equal(t, 1, f.FailedChunks)
}

func TestRecoverInFlightResetsProcessingChunks(t *testing.T) {
	ctx := context.Background()
	g := New()
	_, err := g.CreateFile(ctx, "f1", "a.csv", "/tmp/a.csv")
	require.NoError(t, err)
	_, err = g.CreateChunk(ctx, "f1", 0, 0, 3)
	require.NoError(t, err)
	ok, err := g.ClaimChunk(ctx, "f1", 0)
	require.NoError(t, err)
	require.True(t, ok)

	recovered, err := g.RecoverInFlight(ctx)
	require.NoError(t, err)
	require.Len(t, recovered, 1)
	assert.Equal(t, "f1", recovered[0].FileID)
	assert.Equal(t, 0, recovered[0].Index)
	assert.Equal(t, uint32(3), recovered[0].NumRows)

	chunks, err := g.ListChunks(ctx, "f1")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, model.ChunkQueued, chunks[0].Status)
}

func TestDeleteChunksFromIndex(t *testing.T) {
	ctx := context.Background()
	g := New()
	_, err := g.CreateFile(ctx, "f1", "a.csv", "/tmp/a.csv")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = g.CreateChunk(ctx, "f1", i, uint64(i*10), 5)
		require.NoError(t, err)
	}

	err = g.DeleteChunksFromIndex(ctx, "f1", 1)
	require.NoError(t, err)

	chunks, err := g.ListChunks(ctx, "f1")
	require.NoError(t, err)
	assert.Len(t, chunks, 1)

	maxIdx, any, err := g.MaxPlannedIndex(ctx, "f1")
	require.NoError(t, err)
	assert.True(t, any)
	assert.Equal(t, 0, maxIdx)
}
