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

import "github.com/llevkovych/granula/internal/model"

// uploadResponse is the 201 body of POST /upload.
type uploadResponse struct {
	FileID string `json:"file_id"`
}

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
}

// statusResponse is the 200 body of GET /status/{file_id}.
type statusResponse struct {
	ID              string  `json:"id"`
	Filename        string  `json:"filename"`
	Status          string  `json:"status"`
	TotalChunks     int     `json:"total_chunks"`
	ProcessedChunks int     `json:"processed_chunks"`
	FailedChunks    int     `json:"failed_chunks"`
	ProgressPercent float64 `json:"progress_percent,omitempty"`
	ErrorMessage    *string `json:"error_message,omitempty"`
}

func newStatusResponse(f *model.File) statusResponse {
	resp := statusResponse{
		ID:              f.ID,
		Filename:        f.Filename,
		Status:          string(f.Status),
		TotalChunks:     f.TotalChunks,
		ProcessedChunks: f.ProcessedChunks,
		FailedChunks:    f.FailedChunks,
		ErrorMessage:    f.ErrorMessage,
	}
	if f.TotalChunks > 0 {
		resp.ProgressPercent = 100 * float64(f.ProcessedChunks+f.FailedChunks) / float64(f.TotalChunks)
	}
	return resp
}

// recordDTO is one row of GET /results.
type recordDTO struct {
	ID         string   `json:"id"`
	ChunkIndex int      `json:"chunk_index"`
	Data       []string `json:"data"`
}

// resultsResponse is the 200 body of GET /results/{file_id}.
type resultsResponse struct {
	Results []recordDTO `json:"results"`
	Total   int         `json:"total"`
	Page    int         `json:"page"`
	Size    int         `json:"size"`
	Pages   int         `json:"pages"`
}

// healthResponse is the body of GET /health.
type healthResponse struct {
	Status string `json:"status"`
}
