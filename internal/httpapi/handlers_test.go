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

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llevkovych/granula/internal/backoff"
	blobmem "github.com/llevkovych/granula/internal/blobstore/memtest"
	"github.com/llevkovych/granula/internal/config"
	"github.com/llevkovych/granula/internal/csvio"
	"github.com/llevkovych/granula/internal/lifecycle"
	"github.com/llevkovych/granula/internal/queue"
	storemem "github.com/llevkovych/granula/internal/store/memtest"
	"github.com/llevkovych/granula/internal/workerpool"
)

func testServer(t *testing.T) (*Server, *workerpool.Pool, func()) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	gw := storemem.New()
	blobs := blobmem.New()
	q := queue.New()
	pool := workerpool.NewPool(q, 2)
	exec := workerpool.NewExecutor(gw, blobs, csvio.NewDialect(), backoff.New(time.Millisecond, time.Millisecond), 3, pool.Enqueue, false, log)
	pool.SetExecutor(exec)
	mgr := lifecycle.NewManager(gw, blobs, pool, csvio.NewDialect(), 10, log)

	cfg := &config.Config{
		MaxUploadMB:         1,
		AllowedContentTypes: []string{"text/csv"},
	}
	srv := NewServer(gw, blobs, mgr, cfg, log)

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	stop := func() {
		cancel()
		_ = pool.Stop()
	}
	return srv, pool, stop
}

func multipartUpload(t *testing.T, fieldName, filename, contentType, body string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreatePart(map[string][]string{
		"Content-Disposition": {`form-data; name="` + fieldName + `"; filename="` + filename + `"`},
		"Content-Type":        {contentType},
	})
	require.NoError(t, err)
	_, err = part.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestHealth(t *testing.T) {
	srv, _, stop := testServer(t)
	defer stop()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var body healthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
}

func TestUploadThenStatusThenResults(t *testing.T) {
	srv, _, stop := testServer(t)
	defer stop()

	buf, ct := multipartUpload(t, "file", "data.csv", "text/csv", "id,name\n1,A\n2,B\n")
	req := httptest.NewRequest(http.MethodPost, "/upload", buf)
	req.Header.Set("Content-Type", ct)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code)

	var uploaded uploadResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &uploaded))
	require.NotEmpty(t, uploaded.FileID)

	require.Eventually(t, func() bool {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/status/"+uploaded.FileID, nil)
		srv.ServeHTTP(rr, req)
		var status statusResponse
		_ = json.Unmarshal(rr.Body.Bytes(), &status)
		return status.Status == "completed"
	}, 2*time.Second, 5*time.Millisecond)

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/results/"+uploaded.FileID+"?page=1&size=10", nil)
	srv.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	var results resultsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &results))
	assert.Equal(t, 2, results.Total)
	assert.Len(t, results.Results, 2)
}

func TestUploadRejectsDisallowedContentType(t *testing.T) {
	srv, _, stop := testServer(t)
	defer stop()

	buf, ct := multipartUpload(t, "file", "data.json", "application/json", "{}")
	req := httptest.NewRequest(http.MethodPost, "/upload", buf)
	req.Header.Set("Content-Type", ct)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestStatusUnknownFileReturns404(t *testing.T) {
	srv, _, stop := testServer(t)
	defer stop()

	req := httptest.NewRequest(http.MethodGet, "/status/does-not-exist", nil)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}
