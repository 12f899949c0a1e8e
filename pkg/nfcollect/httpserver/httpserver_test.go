package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfcollect/nfcollect/decoders/netflow"
)

func get(t *testing.T, mux *http.ServeMux, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServer(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cache := netflow.NewTemplateCache()
	_, err := cache.Update("192.0.2.1:2055", 256, []netflow.FieldDescriptor{
		{Type: netflow.FieldProtocol, Length: 1},
		{Type: netflow.FieldL4DstPort, Length: 2},
	})
	require.NoError(t, err)

	var collecting atomic.Bool
	mux := New(Config{TemplatePath: "/templates", Logger: logger}, CacheTemplates(cache), collecting.Load)

	assert.Equal(t, http.StatusServiceUnavailable, get(t, mux, "/__health").Code)
	collecting.Store(true)
	rec := get(t, mux, "/__health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK\n", rec.Body.String())

	rec = get(t, mux, "/templates")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body map[string]map[string][]struct {
		ID    uint16 `json:"id"`
		Name  string `json:"name"`
		Width int    `json:"width"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	fields := body["192.0.2.1:2055"]["256"]
	require.Len(t, fields, 2)
	assert.Equal(t, "PROTOCOL", fields[0].Name)
	assert.Equal(t, 2, fields[1].Width)

	assert.Equal(t, http.StatusOK, get(t, mux, "/metrics").Code)
}

func TestServerWithoutTemplates(t *testing.T) {
	mux := New(Config{}, nil, func() bool { return true })
	assert.Equal(t, http.StatusNotFound, get(t, mux, "/templates").Code)
}
