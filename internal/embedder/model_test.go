package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/hybridindex/internal/logging"
	"github.com/dshills/hybridindex/pkg/types"
)

type fakeOllama struct {
	mu        sync.Mutex
	installed map[string]bool
	pullFails bool
	pulls     int
}

func (f *fakeOllama) handler(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.URL.Path {
	case "/api/tags":
		var resp ollamaTagsResponse
		for name := range f.installed {
			resp.Models = append(resp.Models, struct {
				Name string `json:"name"`
			}{Name: name + ":latest"})
		}
		_ = json.NewEncoder(w).Encode(resp)
	case "/api/pull":
		f.pulls++
		if f.pullFails {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.installed[body["model"].(string)] = true
		_, _ = w.Write([]byte(`{"status":"success"}`))
	case "/api/delete":
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		delete(f.installed, body["model"].(string))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func TestModelManager_InstallAndClear(t *testing.T) {
	fake := &fakeOllama{installed: map[string]bool{}}
	server := httptest.NewServer(http.HandlerFunc(fake.handler))
	defer server.Close()

	m := NewModelManager(OllamaConfig{Host: server.URL, Model: "nomic-embed-text"}, logging.Discard())
	ctx := context.Background()
	assert.Equal(t, types.ModelNone, m.DownloadState())

	require.NoError(t, m.GetOrInstallModel(ctx))
	assert.Equal(t, types.ModelReady, m.DownloadState())
	assert.Equal(t, 1, fake.pulls)

	// Already installed: no second pull
	require.NoError(t, m.GetOrInstallModel(ctx))
	assert.Equal(t, 1, fake.pulls)

	require.NoError(t, m.ClearModel(ctx))
	assert.Equal(t, types.ModelNone, m.DownloadState())
	installed, err := m.Installed(ctx)
	require.NoError(t, err)
	assert.False(t, installed)
}

func TestModelManager_PullFailure(t *testing.T) {
	fake := &fakeOllama{installed: map[string]bool{}, pullFails: true}
	server := httptest.NewServer(http.HandlerFunc(fake.handler))
	defer server.Close()

	m := NewModelManager(OllamaConfig{Host: server.URL}, logging.Discard())
	err := m.GetOrInstallModel(context.Background())
	assert.ErrorIs(t, err, types.ErrModelInstall)
	assert.Equal(t, types.ModelFailed, m.DownloadState())
}

func TestModelManager_Unreachable(t *testing.T) {
	m := NewModelManager(OllamaConfig{Host: "http://127.0.0.1:1"}, logging.Discard())
	err := m.GetOrInstallModel(context.Background())
	assert.ErrorIs(t, err, types.ErrModelInstall)
}
