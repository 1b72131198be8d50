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

package lifecycle

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llevkovych/granula/internal/backoff"
	blobmem "github.com/llevkovych/granula/internal/blobstore/memtest"
	"github.com/llevkovych/granula/internal/csvio"
	"github.com/llevkovych/granula/internal/model"
	"github.com/llevkovych/granula/internal/queue"
	storemem "github.com/llevkovych/granula/internal/store/memtest"
	"github.com/llevkovych/granula/internal/workerpool"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newManager(t *testing.T, gw *storemem.Gateway, blobs *blobmem.Store, chunkSize int) (*Manager, *workerpool.Pool) {
	t.Helper()
	q := queue.New()
	pool := workerpool.NewPool(q, 2)
	exec := workerpool.NewExecutor(gw, blobs, csvio.NewDialect(), backoff.New(time.Millisecond, time.Millisecond), 3, pool.Enqueue, false, testLogger())
	pool.SetExecutor(exec)
	mgr := NewManager(gw, blobs, pool, csvio.NewDialect(), chunkSize, testLogger())
	return mgr, pool
}

func TestAdmitFilePlansAndProcessesAllChunks(t *testing.T) {
	ctx := context.Background()
	gw := storemem.New()
	blobs := blobmem.New()
	mgr, pool := newManager(t, gw, blobs, 2)

	path, _, err := blobs.Save(ctx, "x", ".csv", strings.NewReader("id,name\n1,A\n2,B\n3,C\n4,D\n5,E\n"))
	require.NoError(t, err)

	f, err := mgr.AdmitFile(ctx, "data.csv", path, 0)
	require.NoError(t, err)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	pool.Start(runCtx)
	defer pool.Stop()

	require.Eventually(t, func() bool {
		got, err := gw.GetFile(ctx, f.ID)
		return err == nil && got != nil && got.Status.Terminal()
	}, 2*time.Second, 5*time.Millisecond)

	got, err := gw.GetFile(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, model.FileCompleted, got.Status)
	assert.Equal(t, 3, got.TotalChunks)

	_, total, err := gw.ListResults(ctx, f.ID, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
}

func TestRunPlannerFailsFileOnStructuralError(t *testing.T) {
	ctx := context.Background()
	gw := storemem.New()
	blobs := blobmem.New()
	mgr, _ := newManager(t, gw, blobs, 10)

	f, err := gw.CreateFile(ctx, "f1", "bad.csv", "bad.csv")
	require.NoError(t, err)
	blobs.Put("bad.csv", []byte("id,name\n1,A\n2\n"))

	mgr.RunPlanner(ctx, f.ID)

	got, err := gw.GetFile(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, model.FileFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
}

func TestRecoverReenqueuesProcessingChunks(t *testing.T) {
	ctx := context.Background()
	gw := storemem.New()
	blobs := blobmem.New()
	mgr, pool := newManager(t, gw, blobs, 10)

	_, err := gw.CreateFile(ctx, "f1", "a.csv", "f1.csv")
	require.NoError(t, err)
	blobs.Put("f1.csv", []byte("id,name\n1,A\n2,B\n"))
	_, err = gw.CreateChunk(ctx, "f1", 0, 8, 2)
	require.NoError(t, err)
	claimed, err := gw.ClaimChunk(ctx, "f1", 0)
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, mgr.Recover(ctx))
	assert.Equal(t, 1, pool.QueueLen())
}

func TestRecoverReenqueuesNeverClaimedQueuedChunks(t *testing.T) {
	ctx := context.Background()
	gw := storemem.New()
	blobs := blobmem.New()
	mgr, pool := newManager(t, gw, blobs, 10)

	f, err := gw.CreateFile(ctx, "f1", "a.csv", "f1.csv")
	require.NoError(t, err)
	blobs.Put("f1.csv", []byte("id,name\n1,A\n2,B\n3,C\n4,D\n"))
	_, err = gw.CreateChunk(ctx, "f1", 0, 8, 2)
	require.NoError(t, err)
	_, err = gw.CreateChunk(ctx, "f1", 1, 14, 2)
	require.NoError(t, err)

	// Planner ran and wrote both chunks, but the process crashed before
	// any worker claimed chunk 1: it sits in `queued`, which
	// RecoverInFlight (processing-only) never touches.
	claimed, err := gw.ClaimChunk(ctx, "f1", 0)
	require.NoError(t, err)
	require.True(t, claimed)
	f.Status = model.FileProcessing
	require.NoError(t, gw.UpdateFile(ctx, f))

	require.NoError(t, mgr.Recover(ctx))
	assert.Equal(t, 2, pool.QueueLen())
}
