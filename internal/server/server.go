// Package server exposes the extraction pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"image"
	"net/http"
	"strconv"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"licensetable/internal/logger"
	"licensetable/internal/pipeline"
	"licensetable/pkg/models"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	defaultLimit    = 20
	maxLimit        = 200
)

// Processor runs the extraction on a decoded image.
type Processor interface {
	Process(ctx context.Context, name string, img image.Image) (models.Extraction, error)
}

// History lists stored extractions.
type History interface {
	List(ctx context.Context, limit int) ([]models.Extraction, error)
}

// Options tunes the HTTP surface.
type Options struct {
	// MaxUploadBytes caps the multipart body size.
	MaxUploadBytes int64

	// History enables GET /v1/extractions when set.
	History History
}

// ExtractResponse is the body returned by POST /v1/extract.
type ExtractResponse struct {
	RequestID string `json:"request_id"`
	models.Extraction
}

// New returns the gin engine serving the API.
func New(p Processor, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), accessLog())
	if opts.MaxUploadBytes > 0 {
		r.MaxMultipartMemory = opts.MaxUploadBytes
	}

	h := &handler{processor: p, history: opts.History, maxUpload: opts.MaxUploadBytes}

	r.GET("/healthz", h.health)
	v1 := r.Group("/v1")
	v1.POST("/extract", h.extract)
	if opts.History != nil {
		v1.GET("/extractions", h.list)
	}
	return r
}

type handler struct {
	processor Processor
	history   History
	maxUpload int64
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handler) extract(c *gin.Context) {
	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "No file uploaded")
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "Failed to read file")
		return
	}
	defer f.Close()

	img, err := imaging.Decode(f, imaging.AutoOrientation(true))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Unsupported or corrupted image")
		return
	}

	ext, err := h.processor.Process(c.Request.Context(), fh.Filename, img)
	if err != nil {
		log := logger.WithRequestID(c.GetString(requestIDKey))
		log.Error().Err(err).Str("image", fh.Filename).Msg("Extraction failed")

		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		respondError(c, status, "Extraction failed: "+err.Error())
		return
	}

	if ext.Rows == nil {
		ext.Rows = []models.Row{}
	}
	c.JSON(http.StatusOK, ExtractResponse{RequestID: c.GetString(requestIDKey), Extraction: ext})
}

func (h *handler) list(c *gin.Context) {
	limit := defaultLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxLimit)
	}

	items, err := h.history.List(c.Request.Context(), limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to list extractions")
		return
	}
	c.JSON(http.StatusOK, gin.H{"extractions": items})
}

func respondError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message, "request_id": c.GetString(requestIDKey)})
}

// requestID reuses the caller's X-Request-ID or assigns a new UUID.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log := logger.WithRequestID(c.GetString(requestIDKey))
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	}
}

// compile-time check that the pipeline satisfies Processor.
var _ Processor = (*pipeline.Pipeline)(nil)
