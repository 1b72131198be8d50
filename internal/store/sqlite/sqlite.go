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

// Package sqlite is the store.Gateway for the embedded, single-writer
// backend spec §4.5 calls out: "backends with single-writer semantics
// should cap effective concurrency at 1 regardless of MAX_CONCURRENCY."
// mattn/go-sqlite3 is not part of the retrieved teacher corpus — it is
// named here, not grounded, as the standard ecosystem driver for this
// concern (see DESIGN.md).
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/llevkovych/granula/internal/ingesterr"
	"github.com/llevkovych/granula/internal/model"
	"github.com/llevkovych/granula/internal/store"
)

// Gateway is a store.Gateway backed by an embedded SQLite file.
type Gateway struct {
	db *sql.DB
}

// Open opens (creating if absent) the sqlite file at path and caps the
// connection pool at one connection, since SQLite allows only a single
// writer at a time.
func Open(path string) (*Gateway, error) {
	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "ping sqlite")
	}
	return &Gateway{db: db}, nil
}

func (g *Gateway) Close() error { return g.db.Close() }

func (g *Gateway) EnsureSchema(ctx context.Context) error {
	if _, err := g.db.ExecContext(ctx, schemaSQL); err != nil {
		return ingesterr.Wrap(ingesterr.Fatal, err, "ensure schema")
	}
	return nil
}

func (g *Gateway) CreateFile(ctx context.Context, id, filename, path string) (*model.File, error) {
	const q = `
		INSERT INTO files (id, filename, path, status, total_chunks, processed_chunks, failed_chunks, created_at, updated_at)
		VALUES (?, ?, ?, 'queued', 0, 0, 0, datetime('now'), datetime('now'))`
	if _, err := g.db.ExecContext(ctx, q, id, filename, path); err != nil {
		return nil, errors.Wrap(err, "create file")
	}
	return g.GetFile(ctx, id)
}

func (g *Gateway) GetFile(ctx context.Context, id string) (*model.File, error) {
	const q = `
		SELECT id, filename, path, status, total_chunks, processed_chunks, failed_chunks, error_message, created_at, updated_at
		FROM files WHERE id = ?`
	var f model.File
	var errMsg sql.NullString
	row := g.db.QueryRowContext(ctx, q, id)
	err := row.Scan(&f.ID, &f.Filename, &f.Path, &f.Status, &f.TotalChunks, &f.ProcessedChunks, &f.FailedChunks, &errMsg, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get file")
	}
	if errMsg.Valid {
		f.ErrorMessage = &errMsg.String
	}
	return &f, nil
}

func (g *Gateway) UpdateFile(ctx context.Context, f *model.File) error {
	const q = `UPDATE files SET status = ?, error_message = ?, updated_at = datetime('now') WHERE id = ?`
	_, err := g.db.ExecContext(ctx, q, string(f.Status), f.ErrorMessage, f.ID)
	return errors.Wrap(err, "update file")
}

func (g *Gateway) CreateChunk(ctx context.Context, fileID string, index int, startCookie uint64, numRows uint32) (*model.Chunk, error) {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "begin create chunk tx")
	}
	defer tx.Rollback() //nolint:errcheck

	id := uuid.NewString()
	const insertChunk = `
		INSERT INTO chunks (id, file_id, idx, status, attempts, start_cookie, num_rows, created_at, updated_at)
		VALUES (?, ?, ?, 'queued', 0, ?, ?, datetime('now'), datetime('now'))`
	if _, err := tx.ExecContext(ctx, insertChunk, id, fileID, index, int64(startCookie), numRows); err != nil {
		return nil, errors.Wrap(err, "insert chunk")
	}

	const bumpTotal = `UPDATE files SET total_chunks = MAX(total_chunks, ?), updated_at = datetime('now') WHERE id = ?`
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
	const q = `UPDATE chunks SET status = 'processing', updated_at = datetime('now') WHERE file_id = ? AND idx = ? AND status = 'queued'`
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
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin complete chunk tx")
	}
	defer tx.Rollback() //nolint:errcheck

	const insertRecord = `INSERT INTO processed_records (id, file_id, chunk_index, data, created_at) VALUES (?, ?, ?, ?, datetime('now'))`
	for _, r := range records {
		data, err := json.Marshal(r.Data)
		if err != nil {
			return errors.Wrap(err, "marshal record data")
		}
		if _, err := tx.ExecContext(ctx, insertRecord, uuid.NewString(), fileID, index, data); err != nil {
			return errors.Wrap(err, "insert processed record")
		}
	}

	const completeChunk = `UPDATE chunks SET status = 'completed', updated_at = datetime('now') WHERE file_id = ? AND idx = ?`
	if _, err := tx.ExecContext(ctx, completeChunk, fileID, index); err != nil {
		return errors.Wrap(err, "complete chunk")
	}

	const bumpProcessed = `UPDATE files SET processed_chunks = processed_chunks + 1, updated_at = datetime('now') WHERE id = ?`
	if _, err := tx.ExecContext(ctx, bumpProcessed, fileID); err != nil {
		return errors.Wrap(err, "bump processed_chunks")
	}

	return errors.Wrap(tx.Commit(), "commit complete chunk tx")
}

func (g *Gateway) FailChunk(ctx context.Context, fileID string, index int, attempts int, errMsg string, final bool) error {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin fail chunk tx")
	}
	defer tx.Rollback() //nolint:errcheck

	status := "queued"
	if final {
		status = "failed"
	}
	const updateChunk = `UPDATE chunks SET status = ?, attempts = ?, error_message = ?, updated_at = datetime('now') WHERE file_id = ? AND idx = ?`
	if _, err := tx.ExecContext(ctx, updateChunk, status, attempts, errMsg, fileID, index); err != nil {
		return errors.Wrap(err, "update failed chunk")
	}

	if final {
		const bumpFailed = `UPDATE files SET failed_chunks = failed_chunks + 1, updated_at = datetime('now') WHERE id = ?`
		if _, err := tx.ExecContext(ctx, bumpFailed, fileID); err != nil {
			return errors.Wrap(err, "bump failed_chunks")
		}
	}

	return errors.Wrap(tx.Commit(), "commit fail chunk tx")
}

func (g *Gateway) FinalizeFileIfDone(ctx context.Context, fileID string) (bool, error) {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return false, errors.Wrap(err, "begin finalize tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var status string
	var total, processed, failed int
	const q = `SELECT status, total_chunks, processed_chunks, failed_chunks FROM files WHERE id = ?`
	err = tx.QueryRowContext(ctx, q, fileID).Scan(&status, &total, &processed, &failed)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "select file for finalize")
	}

	f := model.File{Status: model.FileStatus(status), TotalChunks: total, ProcessedChunks: processed, FailedChunks: failed}
	if f.Status.Terminal() || !f.Done() {
		return false, nil
	}

	const upd = `UPDATE files SET status = ?, updated_at = datetime('now') WHERE id = ?`
	if _, err := tx.ExecContext(ctx, upd, string(f.TerminalStatus()), fileID); err != nil {
		return false, errors.Wrap(err, "finalize file")
	}

	if err := tx.Commit(); err != nil {
		return false, errors.Wrap(err, "commit finalize tx")
	}
	return true, nil
}

func (g *Gateway) RecoverInFlight(ctx context.Context) ([]store.RecoveredChunk, error) {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "begin recover tx")
	}
	defer tx.Rollback() //nolint:errcheck

	const sel = `SELECT file_id, idx, start_cookie, num_rows, attempts FROM chunks WHERE status = 'processing'`
	rows, err := tx.QueryContext(ctx, sel)
	if err != nil {
		return nil, errors.Wrap(err, "select in-flight chunks")
	}
	var out []store.RecoveredChunk
	for rows.Next() {
		var r store.RecoveredChunk
		var startCookie int64
		if err := rows.Scan(&r.FileID, &r.Index, &startCookie, &r.NumRows, &r.Attempts); err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "scan in-flight chunk")
		}
		r.StartCookie = uint64(startCookie)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, errors.Wrap(err, "iterate in-flight chunks")
	}
	rows.Close()

	const upd = `UPDATE chunks SET status = 'queued', updated_at = datetime('now') WHERE status = 'processing'`
	if _, err := tx.ExecContext(ctx, upd); err != nil {
		return nil, errors.Wrap(err, "reset in-flight chunks")
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "commit recover tx")
	}
	return out, nil
}

func (g *Gateway) ListQueuedChunks(ctx context.Context) ([]store.RecoveredChunk, error) {
	const sel = `SELECT file_id, idx, start_cookie, num_rows, attempts FROM chunks WHERE status = 'queued'`
	rows, err := g.db.QueryContext(ctx, sel)
	if err != nil {
		return nil, errors.Wrap(err, "select queued chunks")
	}
	defer rows.Close()

	var out []store.RecoveredChunk
	for rows.Next() {
		var r store.RecoveredChunk
		var startCookie int64
		if err := rows.Scan(&r.FileID, &r.Index, &startCookie, &r.NumRows, &r.Attempts); err != nil {
			return nil, errors.Wrap(err, "scan queued chunk")
		}
		r.StartCookie = uint64(startCookie)
		out = append(out, r)
	}
	return out, errors.Wrap(rows.Err(), "iterate queued chunks")
}

func (g *Gateway) ListChunks(ctx context.Context, fileID string) ([]model.Chunk, error) {
	const q = `SELECT id, file_id, idx, status, attempts, start_cookie, num_rows, error_message FROM chunks WHERE file_id = ? ORDER BY idx ASC`
	rows, err := g.db.QueryContext(ctx, q, fileID)
	if err != nil {
		return nil, errors.Wrap(err, "list chunks")
	}
	defer rows.Close()

	var out []model.Chunk
	for rows.Next() {
		var c model.Chunk
		var status string
		var startCookie int64
		var errMsg sql.NullString
		if err := rows.Scan(&c.ID, &c.FileID, &c.Index, &status, &c.Attempts, &startCookie, &c.ResultMeta.NumRows, &errMsg); err != nil {
			return nil, errors.Wrap(err, "scan chunk")
		}
		c.Status = model.ChunkStatus(status)
		c.ResultMeta.StartCookie = uint64(startCookie)
		if errMsg.Valid {
			c.ErrorMessage = &errMsg.String
		}
		out = append(out, c)
	}
	return out, errors.Wrap(rows.Err(), "iterate chunks")
}

func (g *Gateway) CountChunksByStatus(ctx context.Context, fileID string, status model.ChunkStatus) (int, error) {
	const q = `SELECT count(*) FROM chunks WHERE file_id = ? AND status = ?`
	var n int
	err := g.db.QueryRowContext(ctx, q, fileID, string(status)).Scan(&n)
	return n, errors.Wrap(err, "count chunks by status")
}

func (g *Gateway) ListResults(ctx context.Context, fileID string, offset, limit int) ([]model.ProcessedRecord, int, error) {
	const countQ = `SELECT count(*) FROM processed_records WHERE file_id = ?`
	var total int
	if err := g.db.QueryRowContext(ctx, countQ, fileID).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count processed records")
	}

	const q = `SELECT id, file_id, chunk_index, data FROM processed_records WHERE file_id = ? ORDER BY chunk_index ASC, id ASC LIMIT ? OFFSET ?`
	rows, err := g.db.QueryContext(ctx, q, fileID, limit, offset)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list processed records")
	}
	defer rows.Close()

	var out []model.ProcessedRecord
	for rows.Next() {
		var r model.ProcessedRecord
		var data []byte
		if err := rows.Scan(&r.ID, &r.FileID, &r.ChunkIndex, &data); err != nil {
			return nil, 0, errors.Wrap(err, "scan processed record")
		}
		if err := json.Unmarshal(data, &r.Data); err != nil {
			return nil, 0, errors.Wrap(err, "unmarshal record data")
		}
		out = append(out, r)
	}
	return out, total, errors.Wrap(rows.Err(), "iterate processed records")
}

func (g *Gateway) DeleteChunksFromIndex(ctx context.Context, fileID string, fromIndex int) error {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin delete chunks tx")
	}
	defer tx.Rollback() //nolint:errcheck

	const delRecords = `DELETE FROM processed_records WHERE file_id = ? AND chunk_index >= ?`
	if _, err := tx.ExecContext(ctx, delRecords, fileID, fromIndex); err != nil {
		return errors.Wrap(err, "delete processed records")
	}
	const delChunks = `DELETE FROM chunks WHERE file_id = ? AND idx >= ?`
	if _, err := tx.ExecContext(ctx, delChunks, fileID, fromIndex); err != nil {
		return errors.Wrap(err, "delete chunks")
	}
	return errors.Wrap(tx.Commit(), "commit delete chunks tx")
}

func (g *Gateway) MaxPlannedIndex(ctx context.Context, fileID string) (int, bool, error) {
	const q = `SELECT max(idx) FROM chunks WHERE file_id = ?`
	var max sql.NullInt64
	if err := g.db.QueryRowContext(ctx, q, fileID).Scan(&max); err != nil {
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
	placeholders := ""
	args := make([]interface{}, len(statuses))
	for i, s := range statuses {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
		args[i] = string(s)
	}
	q := `SELECT id, filename, path, status, total_chunks, processed_chunks, failed_chunks, error_message, created_at, updated_at
		FROM files WHERE status IN (` + placeholders + `) ORDER BY id ASC`

	rows, err := g.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list files by status")
	}
	defer rows.Close()

	var out []model.File
	for rows.Next() {
		var f model.File
		var errMsg sql.NullString
		if err := rows.Scan(&f.ID, &f.Filename, &f.Path, &f.Status, &f.TotalChunks, &f.ProcessedChunks, &f.FailedChunks, &errMsg, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "scan file")
		}
		if errMsg.Valid {
			f.ErrorMessage = &errMsg.String
		}
		out = append(out, f)
	}
	return out, errors.Wrap(rows.Err(), "iterate files")
}
