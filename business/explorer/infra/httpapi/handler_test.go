package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/substrate-explorer/business/chain/app/chaintest"
	chainDomain "github.com/fd1az/substrate-explorer/business/chain/domain"
	"github.com/fd1az/substrate-explorer/business/explorer/app"
	"github.com/fd1az/substrate-explorer/business/explorer/infra"
	"github.com/fd1az/substrate-explorer/internal/logger"
)

func block(n uint64) *chainDomain.Block {
	return &chainDomain.Block{
		Header: chainDomain.Header{
			Number: n,
			Hash:   common.BytesToHash([]byte{0xb1, byte(n)}),
		},
		Extrinsics: []chainDomain.Extrinsic{{Index: 0, Section: "timestamp", Method: "set"}},
	}
}

type fixture struct {
	chain    *chaintest.Chain
	explorer *app.Explorer
	stream   *chaintest.Stream
	server   *httptest.Server
}

func newFixture(t *testing.T, connect bool) *fixture {
	t.Helper()

	chain := chaintest.New()
	chain.Blocks = []*chainDomain.Block{block(1), block(2)}
	chain.Accounts["5alice"] = &chainDomain.Account{
		Address: "5alice",
		Nonce:   2,
		Balance: chainDomain.Balance{Free: "100", Reserved: "0", Frozen: "0"},
	}

	var out strings.Builder
	e, err := app.NewExplorer(chain, infra.NewConsoleReporterTo(&out), app.Config{
		Endpoint:       "ws://node:9944",
		RecentHeads:    5,
		InitialBackoff: time.Millisecond,
	}, logger.NewNop())
	require.NoError(t, err)

	f := &fixture{chain: chain, explorer: e}
	if connect {
		require.NoError(t, e.Start(context.Background()))
		t.Cleanup(func() { _ = e.Stop() })

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		f.stream, err = chain.NextStream(ctx)
		require.NoError(t, err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	NewHandler(e, logger.NewNop()).Mount(r)
	f.server = httptest.NewServer(r)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fixture) get(t *testing.T, path string, v any) int {
	t.Helper()
	resp, err := http.Get(f.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		TraceID string `json:"traceId"`
	} `json:"error"`
}

func TestStatus(t *testing.T) {
	f := newFixture(t, true)

	var body struct {
		Connection chainDomain.ConnectionState `json:"connection"`
		LatestHead *chainDomain.Header         `json:"latestHead"`
		Heads      int                         `json:"heads"`
	}
	assert.Equal(t, http.StatusOK, f.get(t, "/api/v1/status", &body))
	assert.True(t, body.Connection.Connected)
	assert.Equal(t, "Development", body.Connection.ChainName)
	require.NotNil(t, body.LatestHead)
	assert.Equal(t, uint64(2), body.LatestHead.Number)
	assert.Equal(t, 1, body.Heads)
}

func TestGetBlock(t *testing.T) {
	f := newFixture(t, true)

	var byHeight, byHash chainDomain.Block
	assert.Equal(t, http.StatusOK, f.get(t, "/api/v1/blocks/1", &byHeight))
	assert.Equal(t, http.StatusOK, f.get(t, "/api/v1/blocks/"+block(1).Hash.Hex(), &byHash))
	assert.Equal(t, byHeight, byHash)
	assert.Equal(t, uint64(1), byHeight.Number)
	require.Len(t, byHeight.Extrinsics, 1)
	assert.Equal(t, "timestamp", byHeight.Extrinsics[0].Section)

	var e errorBody
	assert.Equal(t, http.StatusNotFound, f.get(t, "/api/v1/blocks/77", &e))
	assert.Equal(t, "BLOCK_NOT_FOUND", e.Error.Code)
	assert.NotEmpty(t, e.Error.TraceID)

	assert.Equal(t, http.StatusBadRequest, f.get(t, "/api/v1/blocks/latest", &e))
	assert.Equal(t, "INVALID_BLOCK_SELECTOR", e.Error.Code)
}

func TestGetAccount(t *testing.T) {
	f := newFixture(t, true)

	var acc chainDomain.Account
	assert.Equal(t, http.StatusOK, f.get(t, "/api/v1/accounts/5alice", &acc))
	assert.Equal(t, uint32(2), acc.Nonce)
	assert.Equal(t, "100", acc.Balance.Free)

	var e errorBody
	assert.Equal(t, http.StatusBadRequest, f.get(t, "/api/v1/accounts/bob", &e))
	assert.Equal(t, "INVALID_ADDRESS", e.Error.Code)
}

func TestResolveHash(t *testing.T) {
	f := newFixture(t, true)

	var res chainDomain.LookupResult
	assert.Equal(t, http.StatusOK, f.get(t, "/api/v1/search/"+block(2).Hash.Hex(), &res))
	assert.Equal(t, chainDomain.LookupBlock, res.Type)
	require.NotNil(t, res.Data)
	assert.Equal(t, uint64(2), res.Data.Number)

	res = chainDomain.LookupResult{}
	assert.Equal(t, http.StatusOK, f.get(t, "/api/v1/search/0x1234", &res))
	assert.Equal(t, chainDomain.LookupUnknown, res.Type)
	assert.Nil(t, res.Data)
}

func TestSearch(t *testing.T) {
	f := newFixture(t, true)

	var res struct {
		Type    string               `json:"type"`
		Block   *chainDomain.Block   `json:"block"`
		Account *chainDomain.Account `json:"account"`
	}
	assert.Equal(t, http.StatusOK, f.get(t, "/api/v1/search?q=2", &res))
	assert.Equal(t, "block", res.Type)
	require.NotNil(t, res.Block)
	assert.Equal(t, uint64(2), res.Block.Number)

	res.Block = nil
	assert.Equal(t, http.StatusOK, f.get(t, "/api/v1/search?q=5alice", &res))
	assert.Equal(t, "account", res.Type)
	require.NotNil(t, res.Account)

	var e errorBody
	assert.Equal(t, http.StatusBadRequest, f.get(t, "/api/v1/search?q=", &e))
	assert.Equal(t, "REQUIRED_FIELD", e.Error.Code)
}

func TestNotConnected(t *testing.T) {
	f := newFixture(t, false)

	var e errorBody
	assert.Equal(t, http.StatusServiceUnavailable, f.get(t, "/api/v1/blocks/1", &e))
	assert.Equal(t, "NOT_CONNECTED", e.Error.Code)

	var heads struct {
		Heads []chainDomain.Header `json:"heads"`
	}
	assert.Equal(t, http.StatusOK, f.get(t, "/api/v1/heads", &heads))
	assert.Empty(t, heads.Heads)
}

func TestHeadsStream(t *testing.T) {
	f := newFixture(t, true)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/api/v1/heads/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var hello frame
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "hello", hello.Type)
	assert.Len(t, hello.Session, 36)
	require.Len(t, hello.Recent, 1)
	assert.Equal(t, uint64(2), hello.Recent[0].Number)

	f.stream.Push(block(3).Header)

	var next frame
	require.NoError(t, conn.ReadJSON(&next))
	assert.Equal(t, "head", next.Type)
	require.NotNil(t, next.Header)
	assert.Equal(t, uint64(3), next.Header.Number)
	assert.Equal(t, block(3).Hash, next.Header.Hash)

	var heads struct {
		Heads []chainDomain.Header `json:"heads"`
	}
	assert.Equal(t, http.StatusOK, f.get(t, "/api/v1/heads", &heads))
	require.Len(t, heads.Heads, 2)
	assert.Equal(t, uint64(3), heads.Heads[0].Number)
}

func TestHeadsStream_RequiresUpgrade(t *testing.T) {
	f := newFixture(t, true)

	var e errorBody
	assert.Equal(t, http.StatusBadRequest, f.get(t, "/api/v1/heads/ws", &e))
	assert.Equal(t, "INVALID_INPUT", e.Error.Code)
}
