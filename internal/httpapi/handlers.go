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
	"encoding/json"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/llevkovych/granula/internal/csvio"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ct := r.Header.Get("Content-Type")
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes()); err != nil {
		writeError(w, http.StatusBadRequest, "could not parse upload: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing multipart field \"file\"")
		return
	}
	defer file.Close()

	fileCT := header.Header.Get("Content-Type")
	if fileCT == "" {
		fileCT = ct
	}
	if !s.cfg.ContentTypeAllowed(fileCT) {
		writeError(w, http.StatusBadRequest, "content type "+fileCT+" is not allowed")
		return
	}
	if header.Size > s.cfg.MaxUploadBytes() {
		writeError(w, http.StatusBadRequest, "upload of "+humanize.Bytes(uint64(header.Size))+
			" exceeds the "+humanize.Bytes(uint64(s.cfg.MaxUploadBytes()))+" limit")
		return
	}

	if _, err := csvio.ValidateStructure(csvio.NewDialect(), file); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := file.Seek(0, 0); err != nil {
		writeError(w, http.StatusInternalServerError, "could not rewind upload")
		return
	}

	priority := queryInt(r, "priority", 0)
	if priority < 0 || priority > 10 {
		writeError(w, http.StatusBadRequest, "priority must be between 0 and 10")
		return
	}

	id := uuid.NewString()
	ext := filepath.Ext(header.Filename)
	path, _, err := s.blobs.Save(r.Context(), id, ext, file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not store upload: "+err.Error())
		return
	}

	f, err := s.mgr.AdmitFile(r.Context(), header.Filename, path, priority)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not admit file: "+err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{FileID: f.ID})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["file_id"]
	f, err := s.gw.GetFile(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if f == nil {
		writeError(w, http.StatusNotFound, "unknown file_id")
		return
	}
	writeJSON(w, http.StatusOK, newStatusResponse(f))
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["file_id"]
	f, err := s.gw.GetFile(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if f == nil {
		writeError(w, http.StatusNotFound, "unknown file_id")
		return
	}

	page := queryInt(r, "page", 1)
	size := queryInt(r, "size", 100)
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 100
	}

	records, total, err := s.gw.ListResults(r.Context(), id, (page-1)*size, size)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	dtos := make([]recordDTO, 0, len(records))
	for _, rec := range records {
		dtos = append(dtos, recordDTO{ID: rec.ID, ChunkIndex: rec.ChunkIndex, Data: rec.Data})
	}
	pages := (total + size - 1) / size
	if pages == 0 {
		pages = 1
	}

	writeJSON(w, http.StatusOK, resultsResponse{
		Results: dtos,
		Total:   total,
		Page:    page,
		Size:    size,
		Pages:   pages,
	})
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
