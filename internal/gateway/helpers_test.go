package gateway

import (
	"context"
	"hash/fnv"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mnemohq/mnemo/internal/memory"
	"github.com/mnemohq/mnemo/internal/reminder"
	"github.com/mnemohq/mnemo/internal/retrieval"
)

// fakeEmbedder maps text to a bag-of-words vector: each token is hashed to
// a dimension. Texts sharing words come out cosine-similar, which is enough
// to exercise ranking without a real model.
type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, 64)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[h.Sum32()%64]++
	}
	return vec, nil
}

// newTestGateway wires a gateway with in-memory collaborators and returns it
// together with its router. Pass zero AuthConfig for an open gateway.
func newTestGateway(t *testing.T, auth AuthConfig) (*Gateway, http.Handler) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore(memory.NewInMemoryIndex(), fakeEmbedder{}, logger)

	g := &Gateway{
		logger:    logger,
		metrics:   &Metrics{},
		store:     store,
		engine:    retrieval.NewEngine(store, logger),
		reminders: reminder.NewInMemoryStore(),
	}
	g.config.Auth = auth
	g.config.defaults()

	return g, g.buildRouter()
}

// bareTestGateway wires a gateway with no collaborating services at all.
func bareTestGateway(t *testing.T) (*Gateway, http.Handler) {
	t.Helper()

	g := &Gateway{
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics: &Metrics{},
	}
	g.config.defaults()

	return g, g.buildRouter()
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}
