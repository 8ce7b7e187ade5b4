package server

import (
	"net/http"

	"fstash/internal/api"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	schemaVersion, err := s.store.SchemaVersion()
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	stats, err := s.store.FileStats(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	resp := api.InfoResponse{
		DBPath:           s.dbPath,
		BlobRoot:         s.blobRoot,
		SchemaVersion:    schemaVersion,
		TotalRecords:     stats.TotalRecords,
		CanonicalRecords: stats.CanonicalRecords,
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Stats(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	resp := api.StatsResponse{
		TotalRecords:     stats.TotalRecords,
		CanonicalRecords: stats.CanonicalRecords,
		DuplicateRecords: stats.DuplicateRecords,
		StoredBytes:      stats.StoredBytes,
		LogicalBytes:     stats.LogicalBytes,
		SavedBytes:       stats.SavedBytes,
	}
	s.writeJSON(w, http.StatusOK, resp)
}
