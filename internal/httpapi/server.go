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

// Package httpapi is the HTTP surface of spec §6: upload, status,
// results and health, built as a thin adapter over lifecycle.Manager and
// store.Gateway. No business logic lives here.
package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/llevkovych/granula/internal/blobstore"
	"github.com/llevkovych/granula/internal/config"
	"github.com/llevkovych/granula/internal/lifecycle"
	"github.com/llevkovych/granula/internal/store"
)

// Server wires the HTTP handlers to their dependencies.
type Server struct {
	router *mux.Router
	gw     store.Gateway
	blobs  blobstore.Store
	mgr    *lifecycle.Manager
	cfg    *config.Config
	log    *logrus.Logger
}

// NewServer builds a Server and registers every route.
func NewServer(gw store.Gateway, blobs blobstore.Store, mgr *lifecycle.Manager, cfg *config.Config, log *logrus.Logger) *Server {
	s := &Server{
		router: mux.NewRouter(),
		gw:     gw,
		blobs:  blobs,
		mgr:    mgr,
		cfg:    cfg,
		log:    log,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/upload", s.handleUpload).Methods(http.MethodPost)
	s.router.HandleFunc("/status/{file_id}", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/results/{file_id}", s.handleResults).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
