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

package sqlite

// schemaSQL mirrors the postgres schema, using an "idx" column name since
// SQLite's query planner handles the bare word "index" poorly as an
// identifier in some PRAGMA contexts.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS files (
	id               TEXT PRIMARY KEY,
	filename         TEXT NOT NULL,
	path             TEXT NOT NULL,
	status           TEXT NOT NULL DEFAULT 'queued',
	total_chunks     INTEGER NOT NULL DEFAULT 0,
	processed_chunks INTEGER NOT NULL DEFAULT 0,
	failed_chunks    INTEGER NOT NULL DEFAULT 0,
	error_message    TEXT,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS chunks (
	id            TEXT PRIMARY KEY,
	file_id       TEXT NOT NULL REFERENCES files(id) ON DELETE CASCADE,
	idx           INTEGER NOT NULL,
	status        TEXT NOT NULL DEFAULT 'queued',
	attempts      INTEGER NOT NULL DEFAULT 0,
	start_cookie  INTEGER NOT NULL,
	num_rows      INTEGER NOT NULL,
	error_message TEXT,
	created_at    TEXT NOT NULL DEFAULT (datetime('now')),
	updated_at    TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS chunks_file_id_idx_uq ON chunks (file_id, idx);
CREATE INDEX IF NOT EXISTS chunks_file_id_status_idx ON chunks (file_id, status);

CREATE TABLE IF NOT EXISTS processed_records (
	id          TEXT PRIMARY KEY,
	file_id     TEXT NOT NULL REFERENCES files(id) ON DELETE CASCADE,
	chunk_index INTEGER NOT NULL,
	data        TEXT NOT NULL,
	created_at  TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS processed_records_file_id_chunk_index_idx ON processed_records (file_id, chunk_index);
`
