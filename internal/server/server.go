package server

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"fstash/internal/blobstore"
	"fstash/internal/store"
)

const (
	adminTokenEnvKey       = "FSTASH_ADMIN_TOKEN"
	allowRemoteEnvKey      = "FSTASH_ALLOW_REMOTE"
	readHeaderTimeout      = 5 * time.Second
	readTimeout            = 30 * time.Second
	writeTimeout           = 60 * time.Second
	idleTimeout            = 60 * time.Second
	uploadConcurrencyLimit = 8
	gcConcurrencyLimit     = 1
)

// Server wraps HTTP handlers for the fstash API.
type Server struct {
	addr               string
	store              store.FileStore
	blobs              blobstore.Store
	service            *FileService
	logger             *slog.Logger
	dbPath             string
	blobRoot           string
	adminToken         string
	maxUploadBytes     int64
	multipartMaxMemory int64
	uploadLimiter      chan struct{}
	gcLimiter          chan struct{}
}

// New creates a new server instance.
func New(addr string, fileStore store.FileStore, blobs blobstore.Store, dbPath, blobRoot string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		addr:               addr,
		store:              fileStore,
		blobs:              blobs,
		service:            NewFileService(fileStore, blobs),
		logger:             logger,
		dbPath:             dbPath,
		blobRoot:           blobRoot,
		adminToken:         strings.TrimSpace(os.Getenv(adminTokenEnvKey)),
		maxUploadBytes:     defaultUploadMaxBody,
		multipartMaxMemory: defaultUploadMultipartMem,
		uploadLimiter:      make(chan struct{}, uploadConcurrencyLimit),
		gcLimiter:          make(chan struct{}, gcConcurrencyLimit),
	}
}

// UploadOptions overrides upload ingestion limits.
type UploadOptions struct {
	MaxUploadBytes     int64
	MultipartMaxMemory int64
}

// ConfigureUploadOptions overrides upload limits. Non-positive values
// keep the defaults.
func (s *Server) ConfigureUploadOptions(opts UploadOptions) {
	if s == nil {
		return
	}
	if opts.MaxUploadBytes > 0 {
		s.maxUploadBytes = opts.MaxUploadBytes
	}
	if opts.MultipartMaxMemory > 0 {
		s.multipartMaxMemory = opts.MultipartMaxMemory
	}
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	s.log().Info("starting server", "addr", s.addr)
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	return server.ListenAndServe()
}

// ListenAddr converts a base API URL into a listen address.
func ListenAddr(apiURL string) (string, error) {
	if apiURL == "" {
		return "", fmt.Errorf("api url is required")
	}
	if u, err := url.Parse(apiURL); err == nil && u.Host != "" {
		host := u.Hostname()
		if !isAllowedListenHost(host) {
			return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
		}
		return u.Host, nil
	}

	host, _, err := net.SplitHostPort(apiURL)
	if err == nil && !isAllowedListenHost(host) {
		return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
	}

	return apiURL, nil
}

func isAllowedListenHost(host string) bool {
	if host == "" {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv(allowRemoteEnvKey)), "true") {
		return true
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (s *Server) acquireLimiter(limiter chan struct{}, w http.ResponseWriter, r *http.Request, name string) bool {
	if limiter == nil {
		return true
	}
	select {
	case limiter <- struct{}{}:
		return true
	default:
		err := apiError{
			status:  http.StatusTooManyRequests,
			code:    "resource_exhausted",
			errCode: ErrCodeResourceExhausted,
			err:     fmt.Errorf("too many concurrent %s requests", name),
		}
		s.writeErrorReq(w, r, http.StatusTooManyRequests, err)
		return false
	}
}

func (s *Server) releaseLimiter(limiter chan struct{}) {
	if limiter == nil {
		return
	}
	select {
	case <-limiter:
	default:
	}
}

func (s *Server) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
