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

// Package postgres is the production store.Gateway, backed by
// github.com/jmoiron/sqlx over github.com/lib/pq. Every multi-statement
// operation runs inside a single sqlx.Tx; counters are moved with atomic
// SQL expressions so concurrent worker commits never race on a
// read-modify-write.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/llevkovych/granula/internal/ingesterr"
	"github.com/llevkovych/granula/internal/model"
	"github.com/llevkovych/granula/internal/store"
)

// Gateway is a store.Gateway backed by Postgres.
type Gateway struct {
	db *sqlx.DB
}

// Open connects to dsn and returns a ready Gateway. It does not create the
// schema; call EnsureSchema for that.
func Open(dsn string) (*Gateway, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "ping postgres")
	}
	return &Gateway{db: db}, nil
}

func (g *Gateway) Close() error { return g.db.Close() }

func (g *Gateway) EnsureSchema(ctx context.Context) error {
	_, err := g.db.ExecContext(ctx, schemaSQL)
	if err != nil {
		return ingesterr.Wrap(ingesterr.Fatal, err, "ensure schema")
	}
	return nil
}

func (g *Gateway) CreateFile(ctx context.Context, id, filename, path string) (*model.File, error) {
	const q = `
		INSERT INTO files (id, filename, path, status, total_chunks, processed_chunks, failed_chunks, created_at, updated_at)
		VALUES ($1, $2, $3, 'queued', 0, 0, 0, now(), now())
		RETURNING id, filename, path, status, total_chunks, processed_chunks, failed_chunks, error_message, created_at, updated_at`
	var f model.File
	if err := g.db.GetContext(ctx, &f, q, id, filename, path); err != nil {
		return nil, errors.Wrap(err, "create file")
	}
	return &f, nil
}

func (g *Gateway) GetFile(ctx context.Context, id string) (*model.File, error) {
	const q = `
		SELECT id, filename, path, status, total_chunks, processed_chunks, failed_chunks, error_message, created_at, updated_at
		FROM files WHERE id = $1`
	var f model.File
	err := g.db.GetContext(ctx, &f, q, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get file")
	}
	return &f, nil
}

func (g *Gateway) UpdateFile(ctx context.Context, f *model.File) error {
	const q = `UPDATE files SET status = $1, error_message = $2, updated_at = now() WHERE id = $3`
	_, err := g.db.ExecContext(ctx, q, f.Status, f.ErrorMessage, f.ID)
	return errors.Wrap(err, "update file")
}

func (g *Gateway) CreateChunk(ctx context.Context, fileID string, index int, startCookie uint64, numRows uint32) (*model.Chunk, error) {
	tx, err := g.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "begin create chunk tx")
	}
	defer tx.Rollback() //nolint:errcheck

	id := uuid.NewString()
	const insertChunk = `
		INSERT INTO chunks (id, file_id, index, status, attempts, start_cookie, num_rows, created_at, updated_at)
		VALUES ($1, $2, $3, 'queued', 0, $4, $5, now(), now())`
	if _, err := tx.ExecContext(ctx, insertChunk, id, fileID, index, startCookie, numRows); err != nil {
		return nil, errors.Wrap(err, "insert chunk")
	}

	const bumpTotal = `UPDATE files SET total_chunks = GREATEST(total_chunks, $1), updated_at = now() WHERE id = $2`
	if _, err := tx.ExecContext(ctx, bumpTotal, index+1, fileID); err != nil {
		return nil, errors.Wrap(err, "bump total_chunks")
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "commit create chunk tx")
	}

	return &model.Chunk{
		ID:     id,
		FileID: fileID,
		Index:  index,
		Status: model.ChunkQueued,
		ResultMeta: model.ChunkResultMeta{
			StartCookie: startCookie,
			NumRows:     numRows,
		},
	}, nil
}

func (g *Gateway) ClaimChunk(ctx context.Context, fileID string, index int) (bool, error) {
	const q = `
		UPDATE chunks SET status = 'processing', updated_at = now()
		WHERE file_id = $1 AND index = $2 AND status = 'queued'`
	res, err := g.db.ExecContext(ctx, q, fileID, index)
	if err != nil {
		return false, errors.Wrap(err, "claim chunk")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "claim chunk rows affected")
	}
	return n == 1, nil
}

func (g *Gateway) CompleteChunk(ctx context.Context, fileID string, index int, records []model.ProcessedRecord) error {
	tx, err := g.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin complete chunk tx")
	}
	defer tx.Rollback() //nolint:errcheck

	const insertRecord = `
		INSERT INTO processed_records (id, file_id, chunk_index, data, created_at)
		VALUES ($1, $2, $3, $4, now())`
	for _, r := range records {
		data, err := json.Marshal(r.Data)
		if err != nil {
			return errors.Wrap(err, "marshal record data")
		}
		if _, err := tx.ExecContext(ctx, insertRecord, uuid.NewString(), fileID, index, data); err != nil {
			return errors.Wrap(err, "insert processed record")
		}
	}

	const completeChunk = `UPDATE chunks SET status = 'completed', updated_at = now() WHERE file_id = $1 AND index = $2`
	if _, err := tx.ExecContext(ctx, completeChunk, fileID, index); err != nil {
		return errors.Wrap(err, "complete chunk")
	}

	const bumpProcessed = `UPDATE files SET processed_chunks = processed_chunks + 1, updated_at = now() WHERE id = $1`
	if _, err := tx.ExecContext(ctx, bumpProcessed, fileID); err != nil {
		return errors.Wrap(err, "bump processed_chunks")
	}

	return errors.Wrap(tx.Commit(), "commit complete chunk tx")
}

func (g *Gateway) FailChunk(ctx context.Context, fileID string, index int, attempts int, errMsg string, final bool) error {
	tx, err := g.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin fail chunk tx")
	}
	defer tx.Rollback() //nolint:errcheck

	status := "queued"
	if final {
		status = "failed"
	}
	const updateChunk = `
		UPDATE chunks SET status = $1, attempts = $2, error_message = $3, updated_at = now()
		WHERE file_id = $4 AND index = $5`
	if _, err := tx.ExecContext(ctx, updateChunk, status, attempts, errMsg, fileID, index); err != nil {
		return errors.Wrap(err, "update failed chunk")
	}

	if final {
		const bumpFailed = `UPDATE files SET failed_chunks = failed_chunks + 1, updated_at = now() WHERE id = $1`
		if _, err := tx.ExecContext(ctx, bumpFailed, fileID); err != nil {
			return errors.Wrap(err, "bump failed_chunks")
		}
	}

	return errors.Wrap(tx.Commit(), "commit fail chunk tx")
}

func (g *Gateway) FinalizeFileIfDone(ctx context.Context, fileID string) (bool, error) {
	tx, err := g.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, errors.Wrap(err, "begin finalize tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var f model.File
	const q = `
		SELECT id, filename, path, status, total_chunks, processed_chunks, failed_chunks, error_message, created_at, updated_at
		FROM files WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &f, q, fileID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, errors.Wrap(err, "select file for update")
	}

	if f.Status.Terminal() || !f.Done() {
		return false, nil
	}

	const upd = `UPDATE files SET status = $1, updated_at = now() WHERE id = $2`
	if _, err := tx.ExecContext(ctx, upd, string(f.TerminalStatus()), fileID); err != nil {
		return false, errors.Wrap(err, "finalize file")
	}

	if err := tx.Commit(); err != nil {
		return false, errors.Wrap(err, "commit finalize tx")
	}
	return true, nil
}

func (g *Gateway) RecoverInFlight(ctx context.Context) ([]store.RecoveredChunk, error) {
	tx, err := g.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "begin recover tx")
	}
	defer tx.Rollback() //nolint:errcheck

	type row struct {
		FileID      string `db:"file_id"`
		Index       int    `db:"index"`
		StartCookie uint64 `db:"start_cookie"`
		NumRows     uint32 `db:"num_rows"`
		Attempts    int    `db:"attempts"`
	}
	var rows []row
	const sel = `SELECT file_id, index, start_cookie, num_rows, attempts FROM chunks WHERE status = 'processing'`
	if err := tx.SelectContext(ctx, &rows, sel); err != nil {
		return nil, errors.Wrap(err, "select in-flight chunks")
	}

	const upd = `UPDATE chunks SET status = 'queued', updated_at = now() WHERE status = 'processing'`
	if _, err := tx.ExecContext(ctx, upd); err != nil {
		return nil, errors.Wrap(err, "reset in-flight chunks")
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "commit recover tx")
	}

	out := make([]store.RecoveredChunk, 0, len(rows))
	for _, r := range rows {
		out = append(out, store.RecoveredChunk{
			FileID:      r.FileID,
			Index:       r.Index,
			StartCookie: r.StartCookie,
			NumRows:     r.NumRows,
			Attempts:    r.Attempts,
		})
	}
	return out, nil
}

func (g *Gateway) ListQueuedChunks(ctx context.Context) ([]store.RecoveredChunk, error) {
	type row struct {
		FileID      string `db:"file_id"`
		Index       int    `db:"index"`
		StartCookie uint64 `db:"start_cookie"`
		NumRows     uint32 `db:"num_rows"`
		Attempts    int    `db:"attempts"`
	}
	var rows []row
	const sel = `SELECT file_id, index, start_cookie, num_rows, attempts FROM chunks WHERE status = 'queued'`
	if err := g.db.SelectContext(ctx, &rows, sel); err != nil {
		return nil, errors.Wrap(err, "select queued chunks")
	}
	out := make([]store.RecoveredChunk, 0, len(rows))
	for _, r := range rows {
		out = append(out, store.RecoveredChunk{
			FileID:      r.FileID,
			Index:       r.Index,
			StartCookie: r.StartCookie,
			NumRows:     r.NumRows,
			Attempts:    r.Attempts,
		})
	}
	return out, nil
}

func (g *Gateway) ListChunks(ctx context.Context, fileID string) ([]model.Chunk, error) {
	type row struct {
		ID           string  `db:"id"`
		FileID       string  `db:"file_id"`
		Index        int     `db:"index"`
		Status       string  `db:"status"`
		Attempts     int     `db:"attempts"`
		StartCookie  uint64  `db:"start_cookie"`
		NumRows      uint32  `db:"num_rows"`
		ErrorMessage *string `db:"error_message"`
	}
	var rows []row
	const q = `
		SELECT id, file_id, index, status, attempts, start_cookie, num_rows, error_message
		FROM chunks WHERE file_id = $1 ORDER BY index ASC`
	if err := g.db.SelectContext(ctx, &rows, q, fileID); err != nil {
		return nil, errors.Wrap(err, "list chunks")
	}
	out := make([]model.Chunk, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.Chunk{
			ID:           r.ID,
			FileID:       r.FileID,
			Index:        r.Index,
			Status:       model.ChunkStatus(r.Status),
			Attempts:     r.Attempts,
			ResultMeta:   model.ChunkResultMeta{StartCookie: r.StartCookie, NumRows: r.NumRows},
			ErrorMessage: r.ErrorMessage,
		})
	}
	return out, nil
}

func (g *Gateway) CountChunksByStatus(ctx context.Context, fileID string, status model.ChunkStatus) (int, error) {
	const q = `SELECT count(*) FROM chunks WHERE file_id = $1 AND status = $2`
	var n int
	err := g.db.GetContext(ctx, &n, q, fileID, string(status))
	return n, errors.Wrap(err, "count chunks by status")
}

func (g *Gateway) ListResults(ctx context.Context, fileID string, offset, limit int) ([]model.ProcessedRecord, int, error) {
	const countQ = `SELECT count(*) FROM processed_records WHERE file_id = $1`
	var total int
	if err := g.db.GetContext(ctx, &total, countQ, fileID); err != nil {
		return nil, 0, errors.Wrap(err, "count processed records")
	}

	type row struct {
		ID         string `db:"id"`
		FileID     string `db:"file_id"`
		ChunkIndex int    `db:"chunk_index"`
		Data       []byte `db:"data"`
	}
	var rows []row
	const q = `
		SELECT id, file_id, chunk_index, data FROM processed_records
		WHERE file_id = $1 ORDER BY chunk_index ASC, id ASC OFFSET $2 LIMIT $3`
	if err := g.db.SelectContext(ctx, &rows, q, fileID, offset, limit); err != nil {
		return nil, 0, errors.Wrap(err, "list processed records")
	}

	out := make([]model.ProcessedRecord, 0, len(rows))
	for _, r := range rows {
		var data []string
		if err := json.Unmarshal(r.Data, &data); err != nil {
			return nil, 0, errors.Wrap(err, "unmarshal record data")
		}
		out = append(out, model.ProcessedRecord{
			ID:         r.ID,
			FileID:     r.FileID,
			ChunkIndex: r.ChunkIndex,
			Data:       data,
		})
	}
	return out, total, nil
}

func (g *Gateway) DeleteChunksFromIndex(ctx context.Context, fileID string, fromIndex int) error {
	tx, err := g.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin delete chunks tx")
	}
	defer tx.Rollback() //nolint:errcheck

	const delRecords = `DELETE FROM processed_records WHERE file_id = $1 AND chunk_index >= $2`
	if _, err := tx.ExecContext(ctx, delRecords, fileID, fromIndex); err != nil {
		return errors.Wrap(err, "delete processed records")
	}
	const delChunks = `DELETE FROM chunks WHERE file_id = $1 AND index >= $2`
	if _, err := tx.ExecContext(ctx, delChunks, fileID, fromIndex); err != nil {
		return errors.Wrap(err, "delete chunks")
	}
	return errors.Wrap(tx.Commit(), "commit delete chunks tx")
}

func (g *Gateway) MaxPlannedIndex(ctx context.Context, fileID string) (int, bool, error) {
	const q = `SELECT max(index) FROM chunks WHERE file_id = $1`
	var max sql.NullInt64
	if err := g.db.GetContext(ctx, &max, q, fileID); err != nil {
		return 0, false, errors.Wrap(err, "max planned index")
	}
	if !max.Valid {
		return -1, false, nil
	}
	return int(max.Int64), true, nil
}

func (g *Gateway) ListFilesByStatus(ctx context.Context, statuses ...model.FileStatus) ([]model.File, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(
		`SELECT id, filename, path, status, total_chunks, processed_chunks, failed_chunks, error_message, created_at, updated_at
		 FROM files WHERE status IN (?) ORDER BY id ASC`,
		statusStrings(statuses),
	)
	if err != nil {
		return nil, errors.Wrap(err, "build list files query")
	}
	query = g.db.Rebind(query)
	var out []model.File
	if err := g.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, errors.Wrap(err, "list files by status")
	}
	return out, nil
}

func statusStrings(statuses []model.FileStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
