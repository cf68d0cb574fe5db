package vectorstore

import (
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQdrantURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		wantHost string
		wantPort int
		wantTLS  bool
		wantErr  bool
	}{
		{name: "default", url: "", wantHost: "localhost", wantPort: 6334},
		{name: "explicit port", url: "http://qdrant:6333", wantHost: "qdrant", wantPort: 6334},
		{name: "custom port", url: "http://localhost:9000", wantHost: "localhost", wantPort: 9001},
		{name: "tls", url: "https://cloud.example.com", wantHost: "cloud.example.com", wantPort: 6334, wantTLS: true},
		{name: "no host", url: "http://:6333", wantHost: "localhost", wantPort: 6334},
		{name: "invalid", url: "://bad", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, port, tls, err := parseQdrantURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.wantPort, port)
			assert.Equal(t, tt.wantTLS, tls)
		})
	}
}

func TestToPointStruct(t *testing.T) {
	p := Point{ID: "ws::a.go::2", Vector: []float32{0.1, 0.2}, ChunkID: "c1", FilePath: "a.go", ChunkIndex: 2}
	ps := toPointStruct("ns_x", p)

	assert.Equal(t, PointUUID("ns_x", p.ID), ps.GetId().GetUuid())
	payload := ps.GetPayload()
	assert.Equal(t, "ns_x", payload[payloadNamespace].GetStringValue())
	assert.Equal(t, "ws::a.go::2", payload[payloadVectorID].GetStringValue())
	assert.Equal(t, int64(2), payload[payloadChunkIndex].GetIntegerValue())
}

func TestFromScoredPoint(t *testing.T) {
	sp := &qdrant.ScoredPoint{
		Score: 0.75,
		Payload: qdrant.NewValueMap(map[string]any{
			payloadVectorID:   "ws::b.go::0",
			payloadChunkID:    "c9",
			payloadFilePath:   "b.go",
			payloadChunkIndex: int64(0),
		}),
	}
	res := fromScoredPoint(sp)
	assert.Equal(t, "ws::b.go::0", res.ID)
	assert.Equal(t, "c9", res.ChunkID)
	assert.Equal(t, "b.go", res.FilePath)
	assert.InDelta(t, 0.75, res.Score, 1e-6)
}

func TestNamespaceFilter(t *testing.T) {
	f := namespaceFilter("ns_y")
	require.Len(t, f.GetMust(), 1)
	field := f.GetMust()[0].GetField()
	require.NotNil(t, field)
	assert.Equal(t, payloadNamespace, field.GetKey())
	assert.Equal(t, "ns_y", field.GetMatch().GetKeyword())
}
