// Package server implements the /api/clean-pdf extraction service.
package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jask/pdfdesk/internal/database/repository"
	"github.com/jask/pdfdesk/internal/extract"
	"github.com/jask/pdfdesk/internal/pdftext"
)

const endpointPath = extract.EndpointPath

// multipartMemory is the part of an upload kept in memory before spilling to disk.
const multipartMemory = 32 << 20

// TextExtractor turns PDF bytes into cleaned text.
type TextExtractor interface {
	Extract(data []byte) (pdftext.Result, error)
}

// Cache stores extractions by content hash.
type Cache interface {
	Get(ctx context.Context, hash string) (repository.Extraction, error)
	Put(ctx context.Context, e repository.Extraction) error
}

// Options configures a Server.
type Options struct {
	MaxUploadBytes int64
	AllowedOrigins []string
	RateLimit      float64 // requests per second on the extraction route; <= 0 disables
	RateBurst      int
	ExemptLoopback bool  // loopback peers bypass the rate limit
	Cache          Cache // optional
	Logger         *zap.Logger
}

// Server serves extraction requests.
type Server struct {
	extractor TextExtractor
	cache     Cache
	limiter   *rate.Limiter
	exemptLo  bool
	maxUpload int64
	origins   []string
	metrics   *Metrics
	logger    *zap.Logger
}

func New(extractor TextExtractor, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		extractor: extractor,
		cache:     opts.Cache,
		maxUpload: opts.MaxUploadBytes,
		origins:   opts.AllowedOrigins,
		exemptLo:  opts.ExemptLoopback,
		metrics:   NewMetrics(),
		logger:    logger,
	}
	if s.maxUpload <= 0 {
		s.maxUpload = 50 << 20
	}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return s
}

// Handler returns the full middleware-wrapped route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.home)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc(endpointPath, s.cleanPDF)
	mux.Handle("/metrics", s.metrics.Handler())

	var h http.Handler = mux
	h = corsMiddleware(s.origins, h)
	h = s.metrics.Middleware(h)
	h = accessLogMiddleware(s.logger, h)
	return requestIDMiddleware(h)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("extraction server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) home(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "PDF Text Extractor API is running"})
}

func (s *Server) cleanPDF(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodPost:
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.limiter != nil && !(s.exemptLo && isLoopback(r)) && !s.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "Too many requests, slow down")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File too large! Maximum size is %dMB", s.maxUpload>>20))
			return
		}
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	if strings.TrimSpace(header.Filename) == "" || header.Size == 0 {
		writeError(w, http.StatusBadRequest, "Empty file provided")
		return
	}
	if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		writeError(w, http.StatusBadRequest, "File must be a PDF")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error processing PDF: "+err.Error())
		return
	}

	resp, status := s.extractWithCache(r.Context(), header.Filename, data)
	writeJSON(w, status, resp)
}

func (s *Server) extractWithCache(ctx context.Context, filename string, data []byte) (extract.Response, int) {
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	log := s.logger.With(
		zap.String("request_id", requestIDFromContext(ctx)),
		zap.String("file", filename),
		zap.String("sha256", hash),
	)

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, hash)
		switch {
		case err == nil:
			s.metrics.observeExtraction("cached", 0)
			log.Debug("extraction cache hit")
			return responseFromCache(cached), http.StatusOK
		case !errors.Is(err, repository.ErrNotFound):
			log.Warn("extraction cache read failed", zap.Error(err))
		}
	}

	start := time.Now()
	res, err := s.extractor.Extract(data)
	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(err, pdftext.ErrInvalidPDF) {
			s.metrics.observeExtraction("invalid", elapsed)
			log.Info("rejected invalid pdf", zap.Error(err))
			return extract.Response{Error: "Invalid or corrupted PDF file"}, http.StatusBadRequest
		}
		s.metrics.observeExtraction("error", elapsed)
		log.Error("error processing pdf", zap.Error(err))
		return extract.Response{Error: "Error processing PDF: " + err.Error()}, http.StatusInternalServerError
	}
	s.metrics.observeExtraction("ok", elapsed)

	if s.cache != nil {
		entry := repository.Extraction{
			SHA256:     hash,
			Filename:   filename,
			Text:       res.Text,
			Title:      res.Metadata.Title,
			Author:     res.Metadata.Author,
			Pages:      res.Metadata.Pages,
			Characters: res.Stats.Characters,
			Words:      res.Stats.Words,
			Lines:      res.Stats.Lines,
		}
		if err := s.cache.Put(ctx, entry); err != nil {
			log.Warn("extraction cache write failed", zap.Error(err))
		}
	}
	return responseFromResult(res), http.StatusOK
}

func responseFromResult(res pdftext.Result) extract.Response {
	return extract.Response{
		Text: res.Text,
		Metadata: &extract.Metadata{
			Title:  res.Metadata.Title,
			Author: res.Metadata.Author,
			Pages:  res.Metadata.Pages,
		},
		Stats: &extract.Stats{
			Characters: res.Stats.Characters,
			Words:      res.Stats.Words,
			Lines:      res.Stats.Lines,
		},
	}
}

func responseFromCache(e repository.Extraction) extract.Response {
	return extract.Response{
		Text:     e.Text,
		Metadata: &extract.Metadata{Title: e.Title, Author: e.Author, Pages: e.Pages},
		Stats:    &extract.Stats{Characters: e.Characters, Words: e.Words, Lines: e.Lines},
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func isLoopback(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
