package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	httpTimeoutEnvKey  = "FSTASH_HTTP_TIMEOUT"
	adminTokenEnvKey   = "FSTASH_ADMIN_TOKEN"
)

// Client is a simple HTTP client for the fstash API.
type Client struct {
	baseURL    string
	http       *http.Client
	adminToken string
}

// NewClient creates a new API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: httpTimeoutFromEnv()},
		adminToken: strings.TrimSpace(os.Getenv(adminTokenEnvKey)),
	}
}

// Ping checks whether the API server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
}

// GetInfo fetches server and store metadata.
func (c *Client) GetInfo(ctx context.Context) (InfoResponse, error) {
	var resp InfoResponse
	err := c.do(ctx, http.MethodGet, "/v1/info", nil, nil, &resp)
	return resp, err
}

// GetStats fetches dedup statistics.
func (c *Client) GetStats(ctx context.Context) (StatsResponse, error) {
	var resp StatsResponse
	err := c.do(ctx, http.MethodGet, "/v1/stats", nil, nil, &resp)
	return resp, err
}

// UploadFile streams content as a multipart upload and returns the
// created record (canonical or duplicate).
func (c *Client) UploadFile(ctx context.Context, filename, fileType string, content io.Reader) (FileResponse, error) {
	var resp FileResponse

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return resp, err
	}
	if _, err := io.Copy(part, content); err != nil {
		return resp, err
	}
	if fileType != "" {
		if err := writer.WriteField("file_type", fileType); err != nil {
			return resp, err
		}
	}
	if err := writer.Close(); err != nil {
		return resp, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/files", body)
	if err != nil {
		return resp, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	httpResp, err := c.http.Do(req)
	if err != nil {
		return resp, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 {
		return resp, decodeError(httpResp)
	}
	return resp, json.NewDecoder(httpResp.Body).Decode(&resp)
}

// GetFile fetches one record by id.
func (c *Client) GetFile(ctx context.Context, id string) (FileResponse, error) {
	var resp FileResponse
	err := c.do(ctx, http.MethodGet, "/v1/files/"+url.PathEscape(id), nil, nil, &resp)
	return resp, err
}

// ListFiles fetches records matching query filters.
func (c *Client) ListFiles(ctx context.Context, query url.Values) ([]FileResponse, error) {
	var resp []FileResponse
	err := c.do(ctx, http.MethodGet, "/v1/files", query, nil, &resp)
	return resp, err
}

// DeleteFile removes one record by id.
func (c *Client) DeleteFile(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/files/"+url.PathEscape(id), nil, nil, nil)
}

// DownloadFile streams the record's content into w.
func (c *Client) DownloadFile(ctx context.Context, id string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/files/"+url.PathEscape(id)+"/content", nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	_, err = io.Copy(w, resp.Body)
	return err
}

// AdminGC sweeps orphaned blob objects. With apply=false the sweep is a
// dry run that only reports candidates.
func (c *Client) AdminGC(ctx context.Context, apply bool) (GCResponse, error) {
	var resp GCResponse

	query := url.Values{}
	if apply {
		query.Set("apply", "true")
	}

	endpoint := c.baseURL + "/v1/admin/gc"
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return resp, err
	}
	c.setAdminHeader(req)

	httpResp, err := c.http.Do(req)
	if err != nil {
		return resp, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 {
		return resp, decodeError(httpResp)
	}
	return resp, json.NewDecoder(httpResp.Body).Decode(&resp)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
		return &APIError{
			Status:    resp.StatusCode,
			Code:      errResp.Code,
			ErrorCode: errResp.ErrorCode,
			Field:     errResp.Field,
			Message:   errResp.Error,
		}
	}
	return &APIError{Status: resp.StatusCode, Message: fmt.Sprintf("api error: %s", resp.Status)}
}

func (c *Client) setAdminHeader(req *http.Request) {
	if c.adminToken == "" || req == nil {
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.adminToken)
}

func httpTimeoutFromEnv() time.Duration {
	raw := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey))
	if raw == "" {
		return defaultHTTPTimeout
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds <= 0 {
		return defaultHTTPTimeout
	}
	return time.Duration(seconds) * time.Second
}
