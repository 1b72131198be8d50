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

package workerpool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	blobmem "github.com/llevkovych/granula/internal/blobstore/memtest"
	"github.com/llevkovych/granula/internal/backoff"
	"github.com/llevkovych/granula/internal/csvio"
	"github.com/llevkovych/granula/internal/model"
	"github.com/llevkovych/granula/internal/queue"
	storemem "github.com/llevkovych/granula/internal/store/memtest"
)

func TestPoolDrainsQueueAcrossMultipleFiles(t *testing.T) {
	ctx := context.Background()
	gw := storemem.New()
	blobs := blobmem.New()

	const nFiles = 8
	for i := 0; i < nFiles; i++ {
		id := string(rune('a' + i))
		_, err := gw.CreateFile(ctx, id, id+".csv", id+".csv")
		require.NoError(t, err)
		blobs.Put(id+".csv", []byte("id,name\n1,A\n2,B\n"))
		_, err = gw.CreateChunk(ctx, id, 0, 8, 2)
		require.NoError(t, err)
	}

	q := queue.New()
	pool := NewPool(q, nFiles)
	exec := NewExecutor(gw, blobs, csvio.NewDialect(), backoff.New(time.Millisecond, time.Millisecond), 3,
		pool.Enqueue, false, testLogger())
	pool.SetExecutor(exec)

	for i := 0; i < nFiles; i++ {
		id := string(rune('a' + i))
		q.Push(&queue.Task{FileID: id, Index: 0, StartCookie: 8, NumRows: 2, Priority: i})
	}

	runCtx, cancel := context.WithCancel(ctx)
	pool.Start(runCtx)

	require.Eventually(t, func() bool {
		for i := 0; i < nFiles; i++ {
			id := string(rune('a' + i))
			f, err := gw.GetFile(ctx, id)
			if err != nil || f == nil || !f.Status.Terminal() {
				return false
			}
		}
		return true
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, pool.Stop())

	for i := 0; i < nFiles; i++ {
		id := string(rune('a' + i))
		f, err := gw.GetFile(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.FileCompleted, f.Status)
	}
}
