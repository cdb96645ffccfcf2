package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/nasdf/crdoc/clock"
	"github.com/nasdf/crdoc/codec"
	"github.com/nasdf/crdoc/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, doc *core.Document, opts ...Option) *httptest.Server {
	srv := httptest.NewServer(NewServer(doc, opts...).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestQueryPost(t *testing.T) {
	doc := core.New()
	saves := 0
	srv := newTestServer(t, doc, WithSave(func(r *http.Request) error {
		saves++
		return nil
	}))

	body := `{"query": "mutation($v: String) { set(path: [\"title\"], value: $v) }", "variables": {"v": "hello"}}`
	res, err := http.Post(srv.URL+"/query", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var out map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	assert.Equal(t, map[string]any{"set": "hello"}, out["data"])
	assert.Equal(t, map[string]any{"title": "hello"}, doc.View())
	assert.Equal(t, 1, saves)
}

func TestQueryGet(t *testing.T) {
	doc := core.New()
	_, err := doc.Change(context.Background(), func(tx *core.Transaction) error {
		return tx.Set([]any{"count"}, 2)
	})
	require.NoError(t, err)
	srv := newTestServer(t, doc)

	res, err := http.Get(srv.URL + "/query?" + url.Values{"query": {"{ count }"}}.Encode())
	require.NoError(t, err)
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data": {"count": 2}}`, string(data))
}

func TestQueryMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, core.New())

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/query", nil)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
}

func TestSync(t *testing.T) {
	ctx := context.Background()
	remote := core.New(core.WithActor(clock.ActorID{1}))
	_, err := remote.Change(ctx, func(tx *core.Transaction) error {
		return tx.Set([]any{"title"}, "remote")
	})
	require.NoError(t, err)
	srv := newTestServer(t, remote)

	local := core.New(core.WithActor(clock.ActorID{2}))
	_, err = local.Change(ctx, func(tx *core.Transaction) error {
		return tx.Set([]any{"owner"}, "local")
	})
	require.NoError(t, err)

	// pull the remote changes the local replica is missing
	vv, err := codec.EncodeVersionVector(local.Clock())
	require.NoError(t, err)
	res, err := http.Post(srv.URL+"/changes", "application/cbor", bytes.NewReader(vv))
	require.NoError(t, err)
	batch, err := io.ReadAll(res.Body)
	res.Body.Close()
	require.NoError(t, err)
	_, err = local.ReceiveBytes(ctx, batch)
	require.NoError(t, err)

	// push the local changes the remote replica is missing
	res, err = http.Get(srv.URL + "/clock")
	require.NoError(t, err)
	data, err := io.ReadAll(res.Body)
	res.Body.Close()
	require.NoError(t, err)
	remoteClock, err := codec.DecodeVersionVector(data)
	require.NoError(t, err)
	assert.Equal(t, remote.Clock(), remoteClock)

	batch, err = local.EncodeChangesSince(remoteClock)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPut, srv.URL+"/changes", bytes.NewReader(batch))
	require.NoError(t, err)
	res, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var result core.ReceiveResult
	require.NoError(t, json.NewDecoder(res.Body).Decode(&result))
	assert.Equal(t, 1, result.Applied)

	expect := map[string]any{"title": "remote", "owner": "local"}
	assert.Equal(t, expect, local.View())
	assert.Equal(t, expect, remote.View())
}

func TestReceiveMalformed(t *testing.T) {
	srv := newTestServer(t, core.New())

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/changes", strings.NewReader("garbage"))
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}
