package server

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"fstash/internal/api"
)

const (
	defaultUploadMaxBody      = 100 << 20 // 100 MiB
	defaultUploadMultipartMem = 8 << 20   // 8 MiB
	contentSniffLen           = 512
	fallbackContentType       = "application/octet-stream"
	dispositionHeaderFmt      = `attachment; filename=%q`
)

func (s *Server) handleCreateFile(w http.ResponseWriter, r *http.Request) {
	s.withLimiter(w, r, s.uploadLimiter, "upload", func() {
		s.createFile(w, r)
	})
}

func (s *Server) createFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.multipartMaxMemory); err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, classifyMultipartError(err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, missingContent(fmt.Errorf("no file provided")))
		return
	}
	defer file.Close()

	fileType := strings.TrimSpace(r.FormValue("file_type"))
	if fileType == "" {
		fileType = sniffContentType(file, header.Header.Get("Content-Type"))
	}

	record, err := s.service.Ingest(r.Context(), IngestInput{
		Filename: header.Filename,
		FileType: fileType,
	}, file)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, api.FileResponse{FileRecord: record})
}

// sniffContentType prefers the part's declared type and falls back to
// content detection. The seek position is restored so the caller can
// hash and store the stream from wherever it stood.
func sniffContentType(file io.ReadSeeker, declared string) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != fallbackContentType {
		return declared
	}

	origin, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return fallbackContentType
	}
	peek := make([]byte, contentSniffLen)
	n, _ := io.ReadFull(file, peek)
	if _, err := file.Seek(origin, io.SeekStart); err != nil {
		return fallbackContentType
	}
	return http.DetectContentType(peek[:n])
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}

	records, err := s.service.List(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	responses := make([]api.FileResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, api.FileResponse{FileRecord: record})
	}
	s.writeJSON(w, http.StatusOK, responses)
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}

	record, err := s.service.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, api.FileResponse{FileRecord: record})
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}

	if err := s.service.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetFileContent(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}

	content, err := s.service.OpenContent(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	defer content.Reader.Close()

	w.Header().Set("Content-Type", content.FileType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(dispositionHeaderFmt, content.Filename))
	if content.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(content.Size, 10))
	}
	if _, err := io.Copy(w, content.Reader); err != nil {
		s.log().Error("stream file content", "id", id, "error", err)
	}
}
