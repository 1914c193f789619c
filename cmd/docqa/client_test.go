package main

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hyperjump/docqa/internal/config"
	"github.com/hyperjump/docqa/internal/embedding"
	"github.com/hyperjump/docqa/internal/indexer"
	"github.com/hyperjump/docqa/internal/keyword"
	"github.com/hyperjump/docqa/internal/llm"
	"github.com/hyperjump/docqa/internal/rag"
	"github.com/hyperjump/docqa/internal/search"
	"github.com/hyperjump/docqa/internal/server"
	"github.com/hyperjump/docqa/internal/vector"
)

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()
	store := vector.NewStore("")
	emb := embedding.NewHashEmbedder(64)
	kw, err := keyword.NewBleveIndex(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = kw.Close() })

	model := &llm.MockModel{
		Response: "Plants make sugar.",
		Tokens:   []string{"Plants ", "make ", "sugar."},
	}
	idx := indexer.NewIndexer(store, emb, indexer.WithKeywordIndex(kw))
	engine := rag.NewEngine(store, emb, model)
	searcher := search.NewEngine(store, emb, kw)
	srv := server.NewServer(engine, idx, searcher, &config.ServerConfig{MaxUploadMB: 1}, zap.NewNop())

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return newAPIClient(ts.URL + "/")
}

func writeDoc(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "biology.txt")
	content := "Photosynthesis converts light energy into chemical energy.\n\nPlants store it as glucose."
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestAPIClient_RoundTrip(t *testing.T) {
	ctx := context.Background()
	client := newTestAPI(t)

	status, err := client.status(ctx)
	require.NoError(t, err)
	assert.False(t, status.Ready)

	_, err = client.ask(ctx, "what is photosynthesis?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "409")

	res, err := client.upload(ctx, writeDoc(t))
	require.NoError(t, err)
	assert.Equal(t, "biology.txt", res.Filename)
	assert.Equal(t, 1, res.ChunkCount)

	status, err = client.status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Ready)
	require.NotNil(t, status.Metadata)
	assert.Equal(t, "biology.txt", status.Metadata.Filename)

	answer, err := client.ask(ctx, "what is photosynthesis?")
	require.NoError(t, err)
	assert.Equal(t, "Plants make sugar.", answer.Answer)
	assert.Equal(t, "qa", answer.Mode)
	assert.Len(t, answer.SourceDocuments, 1)

	var streamed strings.Builder
	sources, err := client.askStream(ctx, "what is photosynthesis?", func(s string) { streamed.WriteString(s) })
	require.NoError(t, err)
	assert.Equal(t, "Plants make sugar.", streamed.String())
	assert.Equal(t, "qa", sources.Mode)
	assert.Len(t, sources.SourceDocuments, 1)

	passages, err := client.search(ctx, "glucose", 5, false, false)
	require.NoError(t, err)
	require.Len(t, passages.Passages, 1)
	assert.Contains(t, passages.Passages[0].Content, "glucose")

	passages, err = client.search(ctx, "glucose", 5, false, true)
	require.NoError(t, err)
	require.NotEmpty(t, passages.Passages)
	assert.Greater(t, passages.Passages[0].SemanticScore, 0.0)

	require.NoError(t, client.clear(ctx))
	status, err = client.status(ctx)
	require.NoError(t, err)
	assert.False(t, status.Ready)
}

func TestAPIClient_UploadMissingFile(t *testing.T) {
	client := newTestAPI(t)
	_, err := client.upload(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)
}

func TestReadEvents(t *testing.T) {
	stream := "event: sources\ndata: {\"mode\":\"qa\"}\n\n" +
		": comment\n\n" +
		"event: token\ndata: {\"text\":\"a\"}\n\n" +
		"event: done\ndata: {\"success\":true}\n\n" +
		"event: token\ndata: {\"text\":\"never\"}\n\n"

	var events []string
	err := readEvents(strings.NewReader(stream), func(event string, data []byte) (bool, error) {
		events = append(events, event+" "+string(data))
		return event == "done", nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		`sources {"mode":"qa"}`,
		`token {"text":"a"}`,
		`done {"success":true}`,
	}, events)
}

func TestReadEvents_TruncatedStream(t *testing.T) {
	err := readEvents(strings.NewReader("event: token\ndata: {\"text\":\"a\"}\n\n"), func(string, []byte) (bool, error) {
		return false, nil
	})
	assert.Error(t, err)
}
