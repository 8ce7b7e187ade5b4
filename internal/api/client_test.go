package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestClientPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestClientUploadFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/files" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer file.Close()
		if header.Filename != "report.pdf" {
			t.Errorf("filename = %q, want report.pdf", header.Filename)
		}
		data, _ := io.ReadAll(file)
		if string(data) != "pdf bytes" {
			t.Errorf("content = %q", data)
		}
		if ft := r.FormValue("file_type"); ft != "application/pdf" {
			t.Errorf("file_type = %q", ft)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "abc", "original_filename": "report.pdf", "size": 9,
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	resp, err := client.UploadFile(context.Background(), "report.pdf", "application/pdf", strings.NewReader("pdf bytes"))
	if err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	if resp.ID != "abc" || resp.Size != 9 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestClientListFilesQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("file_type"); got != "application/pdf" {
			t.Errorf("file_type query = %q", got)
		}
		if got := r.URL.Query().Get("size_min"); got != "100" {
			t.Errorf("size_min query = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"one"},{"id":"two"}]`))
	}))
	defer srv.Close()

	query := url.Values{}
	query.Set("file_type", "application/pdf")
	query.Set("size_min", "100")

	client := NewClient(srv.URL)
	files, err := client.ListFiles(context.Background(), query)
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != 2 || files[0].ID != "one" {
		t.Errorf("unexpected files: %+v", files)
	}
}

func TestClientDecodesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"file is referenced by 3 duplicate(s)","code":"protected","error_code":2002}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	err := client.DeleteFile(context.Background(), "some-id")
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T", err)
	}
	if apiErr.Status != http.StatusForbidden {
		t.Errorf("status = %d", apiErr.Status)
	}
	if apiErr.Code != "protected" {
		t.Errorf("code = %q", apiErr.Code)
	}
	if apiErr.ErrorCode != 2002 {
		t.Errorf("error_code = %d", apiErr.ErrorCode)
	}
}

func TestClientDecodesValidationField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"must be a valid integer","code":"validation","error_code":1003,"field":"size_min"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.ListFiles(context.Background(), url.Values{"size_min": {"abc"}})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T", err)
	}
	if apiErr.Field != "size_min" {
		t.Errorf("field = %q", apiErr.Field)
	}
}

func TestClientDownloadFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/files/abc/content" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		_, _ = w.Write([]byte("blob content"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	var buf bytes.Buffer
	if err := client.DownloadFile(context.Background(), "abc", &buf); err != nil {
		t.Fatalf("DownloadFile: %v", err)
	}
	if buf.String() != "blob content" {
		t.Errorf("content = %q", buf.String())
	}
}

func TestClientAdminGCSendsToken(t *testing.T) {
	t.Setenv("FSTASH_ADMIN_TOKEN", "secret-token")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret-token" {
			t.Errorf("authorization = %q", got)
		}
		if got := r.URL.Query().Get("apply"); got != "true" {
			t.Errorf("apply query = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidate_count":2,"deleted_count":2,"failed_count":0,"reclaimed_bytes":4096,"dry_run":false}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	resp, err := client.AdminGC(context.Background(), true)
	if err != nil {
		t.Fatalf("AdminGC: %v", err)
	}
	if resp.DeletedCount != 2 || resp.ReclaimedBytes != 4096 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestClientNonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	err := client.Ping(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T", err)
	}
	if apiErr.Status != http.StatusBadGateway {
		t.Errorf("status = %d", apiErr.Status)
	}
}
