package server

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"fstash/internal/api"
)

// requireAdmin gates a handler behind the admin bearer token. With no
// token configured the admin surface is disabled entirely.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.adminToken == "" {
			s.writeErrorReq(w, r, http.StatusForbidden,
				makeAPIError(http.StatusForbidden, "forbidden", ErrCodeForbidden,
					fmt.Errorf("admin endpoints are not configured")))
			return
		}

		token := bearerToken(r)
		if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.adminToken)) != 1 {
			s.writeErrorReq(w, r, http.StatusUnauthorized,
				makeAPIError(http.StatusUnauthorized, "unauthorized", ErrCodeUnauthorized,
					fmt.Errorf("invalid admin token")))
			return
		}

		next(w, r)
	}
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}

func (s *Server) handleAdminGC(w http.ResponseWriter, r *http.Request) {
	s.withLimiter(w, r, s.gcLimiter, "gc", func() {
		apply, err := queryBool(r, "apply")
		if err != nil {
			s.writeErrorReq(w, r, http.StatusBadRequest, err)
			return
		}

		result, err := s.service.GCBlobs(r.Context(), apply)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}

		resp := api.GCResponse{
			CandidateCount: result.CandidateCount,
			DeletedCount:   result.DeletedCount,
			FailedCount:    result.FailedCount,
			ReclaimedBytes: result.ReclaimedBytes,
			DryRun:         result.DryRun,
		}
		s.writeJSON(w, http.StatusOK, resp)
	})
}
