package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/CollComm/werewolf-sign/internal/models"
	"github.com/CollComm/werewolf-sign/internal/storage"
)

const uploadField = "video"

// Interpreter runs the gesture pipeline on a staged upload
type Interpreter interface {
	Interpret(ctx context.Context, upload models.VideoUpload) (models.InterpretationSequence, error)
}

// Handler serves the interpretation endpoints
type Handler struct {
	interpreter Interpreter
	staging     *storage.Staging
	logger      *slog.Logger
}

// NewHandler creates a Handler
func NewHandler(interpreter Interpreter, staging *storage.Staging, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{interpreter: interpreter, staging: staging, logger: logger}
}

// InterpretResponse is the body returned on success
type InterpretResponse struct {
	Interpretations models.InterpretationSequence `json:"interpretations"`
}

// ErrorResponse is the body returned on failure
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Interpret accepts a multipart video upload and returns one label per sampled frame
// POST /api/interpret
func (h *Handler) Interpret(c *gin.Context) {
	fileHeader, err := c.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "Video file is too large", Code: "upload_too_large"})
			return
		}
		h.respondError(c, models.NewPipelineError("upload", models.ErrUploadMissing, err))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.respondError(c, models.NewPipelineError("upload", models.ErrUploadMissing, err))
		return
	}
	defer file.Close()

	upload, err := h.staging.Save(file, fileHeader.Filename)
	if err != nil {
		h.respondError(c, err)
		return
	}

	seq, err := h.interpreter.Interpret(c.Request.Context(), upload)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, InterpretResponse{Interpretations: seq})
}

// Health reports liveness
// GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status, message := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("interpretation failed", "status", status, "error", err)
	} else {
		h.logger.Warn("interpretation rejected", "status", status, "error", err)
	}
	c.JSON(status, ErrorResponse{Error: message, Code: models.Code(err)})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrUploadMissing):
		return http.StatusBadRequest, "No video file uploaded"
	case errors.Is(err, models.ErrInterrupted) && errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Interpretation timed out"
	case errors.Is(err, models.ErrInterrupted):
		return http.StatusServiceUnavailable, "Interpretation cancelled"
	case errors.Is(err, models.ErrExtraction):
		return http.StatusUnprocessableEntity, "Could not extract frames from video"
	case errors.Is(err, models.ErrClassification):
		return http.StatusBadGateway, "Gesture classification failed"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Interpretation timed out"
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "Interpretation cancelled"
	default:
		return http.StatusInternalServerError, "An error occurred while processing the video"
	}
}
