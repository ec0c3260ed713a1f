package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CollComm/werewolf-sign/internal/models"
	"github.com/CollComm/werewolf-sign/internal/storage"
)

type stubInterpreter struct {
	seq      models.InterpretationSequence
	err      error
	received []models.VideoUpload
}

func (s *stubInterpreter) Interpret(ctx context.Context, upload models.VideoUpload) (models.InterpretationSequence, error) {
	s.received = append(s.received, upload)
	os.Remove(upload.Path)
	return s.seq, s.err
}

func newTestRouter(t *testing.T, interp Interpreter, maxUpload int64) (*gin.Engine, *storage.Staging) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	staging, err := storage.NewStaging(t.TempDir())
	require.NoError(t, err)

	r := NewRouter(NewHandler(interp, staging, nil), nil, RouterOptions{
		AllowedOrigins: []string{"http://localhost:3000"},
		MaxUploadBytes: maxUpload,
	})
	return r, staging
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if field != "" {
		part, err := w.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	} else {
		require.NoError(t, w.WriteField("note", "no file"))
	}
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}

func TestInterpretSuccess(t *testing.T) {
	interp := &stubInterpreter{seq: models.InterpretationSequence{"1", "Seer", "Unknown"}}
	r, staging := newTestRouter(t, interp, 1<<20)

	body, contentType := multipartBody(t, "video", "clip.mp4", []byte("video-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/interpret", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp InterpretResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.InterpretationSequence{"1", "Seer", "Unknown"}, resp.Interpretations)

	require.Len(t, interp.received, 1)
	assert.Equal(t, "clip.mp4", interp.received[0].OriginalName)
	assert.Equal(t, int64(11), interp.received[0].SizeBytes)
	assert.Equal(t, staging.Dir(), filepath.Dir(interp.received[0].Path))
}

func TestInterpretMissingUpload(t *testing.T) {
	interp := &stubInterpreter{}
	r, _ := newTestRouter(t, interp, 1<<20)

	body, contentType := multipartBody(t, "", "", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/interpret", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "No video file uploaded", resp.Error)
	assert.Equal(t, "upload_missing", resp.Code)
	assert.Empty(t, interp.received)
}

func TestInterpretEmptyUpload(t *testing.T) {
	interp := &stubInterpreter{}
	r, _ := newTestRouter(t, interp, 1<<20)

	body, contentType := multipartBody(t, "video", "clip.mp4", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/interpret", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, interp.received)
}

func TestInterpretTooLarge(t *testing.T) {
	interp := &stubInterpreter{}
	r, _ := newTestRouter(t, interp, 64)

	body, contentType := multipartBody(t, "video", "clip.mp4", bytes.Repeat([]byte("x"), 4096))
	req := httptest.NewRequest(http.MethodPost, "/api/interpret", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Empty(t, interp.received)
}

func TestInterpretErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"extraction", models.NewPipelineError("extract", models.ErrNoFrames, errors.New("empty")), http.StatusUnprocessableEntity, "extraction_failed"},
		{"classification", models.NewFrameError("classify", models.ErrClassification, 2, errors.New("500")), http.StatusBadGateway, "classification_failed"},
		{"invocation timeout", models.NewFrameError("classify", models.ErrClassification, 0, models.Interrupted(context.DeadlineExceeded)), http.StatusGatewayTimeout, "classification_failed"},
		{"invocation cancelled", models.NewPipelineError("extract", models.ErrExtraction, models.Interrupted(context.Canceled)), http.StatusServiceUnavailable, "extraction_failed"},
		{"frame call timeout", models.NewFrameError("classify", models.ErrClassification, 2, fmt.Errorf("anthropic: %w", context.DeadlineExceeded)), http.StatusBadGateway, "classification_failed"},
		{"internal", errors.New("disk full"), http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRouter(t, &stubInterpreter{err: tt.err}, 1<<20)

			body, contentType := multipartBody(t, "video", "clip.mp4", []byte("video"))
			req := httptest.NewRequest(http.MethodPost, "/api/interpret", body)
			req.Header.Set("Content-Type", contentType)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Code)
		})
	}
}

func TestHealthAndCORS(t *testing.T) {
	r, _ := newTestRouter(t, &stubInterpreter{}, 1<<20)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.test")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	r, _ := newTestRouter(t, &stubInterpreter{}, 1<<20)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
