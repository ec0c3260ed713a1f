package classifier

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CollComm/werewolf-sign/internal/models"
	"github.com/CollComm/werewolf-sign/internal/taxonomy"
)

func newTestOllama(t *testing.T, handler http.HandlerFunc) *Ollama {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	base, err := url.Parse(srv.URL)
	require.NoError(t, err)

	o, err := NewOllamaWithClient(api.NewClient(base, srv.Client()), "llava-test", 64, taxonomy.Default())
	require.NoError(t, err)
	return o
}

func TestOllamaClassify(t *testing.T) {
	raw := []byte("jpeg-bytes")
	var req struct {
		Model    string `json:"model"`
		Stream   *bool  `json:"stream"`
		Messages []struct {
			Role    string   `json:"role"`
			Content string   `json:"content"`
			Images  []string `json:"images"`
		} `json:"messages"`
		Options map[string]any `json:"options"`
	}

	o := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &req))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"model":"llava-test","message":{"role":"assistant","content":" Hunter\n"},"done":true}`+"\n")
	})

	label, err := o.Classify(context.Background(), models.FrameFile{Index: 0, RawBytes: raw})
	require.NoError(t, err)
	assert.Equal(t, "Hunter", label)

	assert.Equal(t, "llava-test", req.Model)
	require.NotNil(t, req.Stream)
	assert.False(t, *req.Stream)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, taxonomy.Default().SystemPrompt(), req.Messages[0].Content)
	assert.Equal(t, "What Werewolf Hand Gesture is shown in this image?", req.Messages[1].Content)
	require.Len(t, req.Messages[1].Images, 1)
	assert.Equal(t, base64.StdEncoding.EncodeToString(raw), req.Messages[1].Images[0])
	assert.EqualValues(t, 0, req.Options["temperature"])
	assert.EqualValues(t, 64, req.Options["num_predict"])
}

func TestOllamaStatusError(t *testing.T) {
	o := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, `{"status":"loading model"}`)
	})

	_, err := o.Classify(context.Background(), models.FrameFile{Index: 2, RawBytes: []byte("jpeg")})
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestNewOllamaRequiresModel(t *testing.T) {
	_, err := NewOllamaWithClient(nil, "", 10, taxonomy.Default())
	assert.Error(t, err)
}
