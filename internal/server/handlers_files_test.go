package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"fstash/internal/api"
	"fstash/internal/blobstore"
	"fstash/internal/store"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "fstash.db")
	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	blobRoot := filepath.Join(dir, "blobs")
	cas, err := blobstore.NewLocalCAS(blobRoot)
	if err != nil {
		t.Fatalf("new blob store: %v", err)
	}

	srv := New("127.0.0.1:0", st, cas, dbPath, blobRoot, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ts := httptest.NewServer(srv.routes())
	t.Cleanup(ts.Close)
	return srv, ts
}

func uploadMultipart(t *testing.T, ts *httptest.Server, filename, fileType, content string) *http.Response {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := io.WriteString(part, content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if fileType != "" {
		if err := writer.WriteField("file_type", fileType); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	resp, err := http.Post(ts.URL+"/v1/files", writer.FormDataContentType(), body)
	if err != nil {
		t.Fatalf("post upload: %v", err)
	}
	return resp
}

func decodeFile(t *testing.T, resp *http.Response) api.FileResponse {
	t.Helper()
	defer resp.Body.Close()
	var file api.FileResponse
	if err := json.NewDecoder(resp.Body).Decode(&file); err != nil {
		t.Fatalf("decode file response: %v", err)
	}
	return file
}

func decodeErrorResp(t *testing.T, resp *http.Response) api.ErrorResponse {
	t.Helper()
	defer resp.Body.Close()
	var errResp api.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return errResp
}

func TestUploadCreatesFile(t *testing.T) {
	_, ts := newTestServer(t)

	resp := uploadMultipart(t, ts, "notes.txt", "text/plain", "hello fstash")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	file := decodeFile(t, resp)
	if file.OriginalFilename != "notes.txt" {
		t.Errorf("filename = %q", file.OriginalFilename)
	}
	if file.IsDuplicate {
		t.Error("first upload should be canonical")
	}
	if file.ContentHash == nil {
		t.Error("canonical should carry a content hash")
	}
}

func TestUploadDuplicateReturnsDuplicateRecord(t *testing.T) {
	_, ts := newTestServer(t)

	first := decodeFile(t, uploadMultipart(t, ts, "a.txt", "text/plain", "same body"))
	resp := uploadMultipart(t, ts, "b.txt", "text/plain", "same body")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	second := decodeFile(t, resp)
	if !second.IsDuplicate {
		t.Fatal("expected duplicate record")
	}
	if second.ReferencedFile == nil || *second.ReferencedFile != first.ID {
		t.Errorf("referenced_file = %v, want %s", second.ReferencedFile, first.ID)
	}
	if second.ContentHash != nil {
		t.Errorf("duplicate content_hash = %q, want null", *second.ContentHash)
	}
}

func TestUploadMissingFilePart(t *testing.T) {
	_, ts := newTestServer(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	_ = writer.WriteField("file_type", "text/plain")
	_ = writer.Close()

	resp, err := http.Post(ts.URL+"/v1/files", writer.FormDataContentType(), body)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	errResp := decodeErrorResp(t, resp)
	if errResp.Code != "missing_content" {
		t.Errorf("code = %q, want missing_content", errResp.Code)
	}
	if errResp.ErrorCode != ErrCodeMissingContent {
		t.Errorf("error_code = %d", errResp.ErrorCode)
	}
}

func TestUploadSniffsContentTypeWhenUndeclared(t *testing.T) {
	_, ts := newTestServer(t)

	resp := uploadMultipart(t, ts, "page.html", "", "<!DOCTYPE html><html><body>hi</body></html>")
	file := decodeFile(t, resp)
	if !strings.HasPrefix(file.FileType, "text/html") {
		t.Errorf("file_type = %q, want text/html prefix", file.FileType)
	}
}

func TestGetFile(t *testing.T) {
	_, ts := newTestServer(t)

	created := decodeFile(t, uploadMultipart(t, ts, "x.txt", "text/plain", "fetch me"))

	resp, err := http.Get(ts.URL + "/v1/files/" + created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	fetched := decodeFile(t, resp)
	if fetched.ID != created.ID {
		t.Errorf("id = %q", fetched.ID)
	}
}

func TestGetFileNotFound(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/files/" + store.NewFileID())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	errResp := decodeErrorResp(t, resp)
	if errResp.ErrorCode != ErrCodeFileNotFound {
		t.Errorf("error_code = %d", errResp.ErrorCode)
	}
}

func TestGetFileInvalidID(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/files/not-a-uuid")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestDownloadContent(t *testing.T) {
	_, ts := newTestServer(t)

	created := decodeFile(t, uploadMultipart(t, ts, "dl.txt", "text/plain", "download payload"))

	resp, err := http.Get(ts.URL + "/v1/files/" + created.ID + "/content")
	if err != nil {
		t.Fatalf("get content: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/plain" {
		t.Errorf("content-type = %q", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "dl.txt") {
		t.Errorf("content-disposition = %q", cd)
	}
	data, _ := io.ReadAll(resp.Body)
	if string(data) != "download payload" {
		t.Errorf("body = %q", data)
	}
}

func TestDeleteFlow(t *testing.T) {
	_, ts := newTestServer(t)
	client := ts.Client()

	canonical := decodeFile(t, uploadMultipart(t, ts, "a.txt", "text/plain", "delete flow"))
	dup := decodeFile(t, uploadMultipart(t, ts, "b.txt", "text/plain", "delete flow"))

	// Canonical is protected while the duplicate lives.
	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/v1/files/"+canonical.ID, nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("delete canonical: %v", err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
	errResp := decodeErrorResp(t, resp)
	if errResp.Code != "protected" || errResp.ErrorCode != ErrCodeFileProtected {
		t.Errorf("error = %+v", errResp)
	}

	// Duplicate deletes cleanly.
	req, _ = http.NewRequest(http.MethodDelete, ts.URL+"/v1/files/"+dup.ID, nil)
	resp, err = client.Do(req)
	if err != nil {
		t.Fatalf("delete duplicate: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}

	// Now the canonical is free.
	req, _ = http.NewRequest(http.MethodDelete, ts.URL+"/v1/files/"+canonical.ID, nil)
	resp, err = client.Do(req)
	if err != nil {
		t.Fatalf("delete canonical again: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}
}

func TestDeleteNotFoundStatus(t *testing.T) {
	_, ts := newTestServer(t)

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/v1/files/"+store.NewFileID(), nil)
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestListFilesWithFilters(t *testing.T) {
	_, ts := newTestServer(t)

	uploadMultipart(t, ts, "report.pdf", "application/pdf", "pdf one").Body.Close()
	uploadMultipart(t, ts, "REPORT-final.pdf", "application/pdf", "pdf two").Body.Close()
	uploadMultipart(t, ts, "notes.txt", "text/plain", "plain text").Body.Close()

	listFiles := func(query string) []api.FileResponse {
		t.Helper()
		resp, err := http.Get(ts.URL + "/v1/files?" + query)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		var files []api.FileResponse
		if err := json.NewDecoder(resp.Body).Decode(&files); err != nil {
			t.Fatalf("decode list: %v", err)
		}
		return files
	}

	if got := listFiles(""); len(got) != 3 {
		t.Errorf("unfiltered count = %d, want 3", len(got))
	}
	if got := listFiles("search=report"); len(got) != 2 {
		t.Errorf("search count = %d, want 2 (case-insensitive)", len(got))
	}
	if got := listFiles("file_type=" + url.QueryEscape("application/pdf")); len(got) != 2 {
		t.Errorf("file_type count = %d, want 2", len(got))
	}
	if got := listFiles(fmt.Sprintf("size_min=%d", len("plain text"))); len(got) != 1 {
		t.Errorf("size_min count = %d, want 1", len(got))
	}
}

func TestListFilesInvalidSizeFilterNamesField(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/files?size_min=abc")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	errResp := decodeErrorResp(t, resp)
	if errResp.Field != "size_min" {
		t.Errorf("field = %q, want size_min", errResp.Field)
	}
	if errResp.Code != "validation" {
		t.Errorf("code = %q, want validation", errResp.Code)
	}
	if errResp.Error != "must be a valid integer" {
		t.Errorf("error = %q", errResp.Error)
	}
}

func TestListFilesInvalidDateFilterNamesField(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/files?uploaded_after=yesterday")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	errResp := decodeErrorResp(t, resp)
	if errResp.Field != "uploaded_after" {
		t.Errorf("field = %q, want uploaded_after", errResp.Field)
	}
	if errResp.ErrorCode != ErrCodeInvalidTimeFilter {
		t.Errorf("error_code = %d", errResp.ErrorCode)
	}
}

func TestHealthAndInfo(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}

	uploadMultipart(t, ts, "a.txt", "text/plain", "info body").Body.Close()

	resp, err = http.Get(ts.URL + "/v1/info")
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	defer resp.Body.Close()
	var info api.InfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("decode info: %v", err)
	}
	if info.SchemaVersion < 1 {
		t.Errorf("schema_version = %d", info.SchemaVersion)
	}
	if info.TotalRecords != 1 || info.CanonicalRecords != 1 {
		t.Errorf("info = %+v", info)
	}
}

func TestStatsEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	uploadMultipart(t, ts, "a.bin", "application/octet-stream", "stat bytes").Body.Close()
	uploadMultipart(t, ts, "b.bin", "application/octet-stream", "stat bytes").Body.Close()

	resp, err := http.Get(ts.URL + "/v1/stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	defer resp.Body.Close()
	var stats api.StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalRecords != 2 || stats.DuplicateRecords != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.SavedBytes != int64(len("stat bytes")) {
		t.Errorf("saved_bytes = %d", stats.SavedBytes)
	}
}

func TestAdminGCRequiresToken(t *testing.T) {
	srv, ts := newTestServer(t)
	srv.adminToken = "gc-secret"

	resp, err := http.Post(ts.URL+"/v1/admin/gc", "application/json", nil)
	if err != nil {
		t.Fatalf("gc without token: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/v1/admin/gc", nil)
	req.Header.Set("Authorization", "Bearer gc-secret")
	resp, err = ts.Client().Do(req)
	if err != nil {
		t.Fatalf("gc with token: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var gc api.GCResponse
	if err := json.NewDecoder(resp.Body).Decode(&gc); err != nil {
		t.Fatalf("decode gc: %v", err)
	}
	if !gc.DryRun {
		t.Error("gc without apply should be a dry run")
	}
}

func TestAdminGCDisabledWithoutToken(t *testing.T) {
	srv, ts := newTestServer(t)
	srv.adminToken = ""

	resp, err := http.Post(ts.URL+"/v1/admin/gc", "application/json", nil)
	if err != nil {
		t.Fatalf("gc: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
}

func TestUploadRejectsBodyOverConfiguredLimit(t *testing.T) {
	srv, ts := newTestServer(t)
	srv.ConfigureUploadOptions(UploadOptions{MaxUploadBytes: 256})

	resp := uploadMultipart(t, ts, "big.bin", "", strings.Repeat("x", 4096))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	errResp := decodeErrorResp(t, resp)
	if errResp.ErrorCode != ErrCodeRequestTooLarge {
		t.Errorf("error_code = %d, want %d", errResp.ErrorCode, ErrCodeRequestTooLarge)
	}

	// The same payload passes once the limit allows it.
	srv.ConfigureUploadOptions(UploadOptions{MaxUploadBytes: 1 << 20})
	resp = uploadMultipart(t, ts, "big.bin", "", strings.Repeat("x", 4096))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201 after raising the limit", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestUploadRejectedWhenLimiterSaturated(t *testing.T) {
	srv, ts := newTestServer(t)
	for i := 0; i < cap(srv.uploadLimiter); i++ {
		srv.uploadLimiter <- struct{}{}
	}
	defer func() {
		for i := 0; i < cap(srv.uploadLimiter); i++ {
			<-srv.uploadLimiter
		}
	}()

	resp := uploadMultipart(t, ts, "busy.txt", "", "no slots left")
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}
	errResp := decodeErrorResp(t, resp)
	if errResp.Code != "resource_exhausted" {
		t.Errorf("code = %q, want resource_exhausted", errResp.Code)
	}
	if errResp.ErrorCode != ErrCodeResourceExhausted {
		t.Errorf("error_code = %d, want %d", errResp.ErrorCode, ErrCodeResourceExhausted)
	}
}
