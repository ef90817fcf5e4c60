package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestResolveURI(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		gateway string
		want    string
	}{
		{"ipfs", "ipfs://QmHash/1.json", "https://gateway.pinata.cloud/ipfs/", "https://gateway.pinata.cloud/ipfs/QmHash/1.json"},
		{"gateway without slash", "ipfs://QmHash", "http://localhost:8080/ipfs", "http://localhost:8080/ipfs/QmHash"},
		{"https left alone", "https://example.com/1.json", DefaultImageGateway, "https://example.com/1.json"},
		{"empty", "", DefaultImageGateway, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveURI(tt.uri, tt.gateway))
		})
	}
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ipfs/QmMeta/3.json", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"Cat #3","description":"a cat","image":"ipfs://QmImg/3.png","attributes":[]}`))
	}))
	defer srv.Close()

	g := NewIPFSGateway(srv.URL+"/ipfs/", "", time.Second, zap.NewNop())
	meta, err := g.Fetch(context.Background(), "ipfs://QmMeta/3.json")
	require.NoError(t, err)
	assert.Equal(t, "Cat #3", meta.Name)
	assert.Equal(t, "a cat", meta.Description)
	assert.Equal(t, "https://ipfs.io/ipfs/QmImg/3.png", g.ImageURL(meta.Image))
}

func TestFetch_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	g := NewIPFSGateway(srv.URL+"/ipfs/", "", time.Second, zap.NewNop())
	_, err := g.Fetch(context.Background(), "ipfs://QmMissing")
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
}

func TestFetch_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	g := NewIPFSGateway(srv.URL+"/ipfs/", "", time.Second, zap.NewNop())
	_, err := g.Fetch(context.Background(), "ipfs://QmBroken")
	assert.Error(t, err)
}

func TestFetch_OversizedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"` + strings.Repeat("a", 2*maxMetadataBytes) + `","image":"ipfs://QmImg"}`))
	}))
	defer srv.Close()

	g := NewIPFSGateway(srv.URL+"/ipfs/", "", time.Second, zap.NewNop())
	_, err := g.Fetch(context.Background(), "ipfs://QmHuge")
	assert.Error(t, err)
}
