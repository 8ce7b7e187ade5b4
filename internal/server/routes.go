package server

import (
	"net/http"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check and info.
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v1/info", s.handleInfo)
	mux.HandleFunc("GET /v1/stats", s.handleStats)

	// Files collection.
	mux.HandleFunc("POST /v1/files", s.handleCreateFile)
	mux.HandleFunc("GET /v1/files", s.handleListFiles)

	// Single file.
	mux.HandleFunc("GET /v1/files/{id}", s.handleGetFile)
	mux.HandleFunc("DELETE /v1/files/{id}", s.handleDeleteFile)
	mux.HandleFunc("GET /v1/files/{id}/content", s.handleGetFileContent)

	// Admin.
	mux.HandleFunc("POST /v1/admin/gc", s.requireAdmin(s.handleAdminGC))

	return s.withRequestLogging(mux)
}
