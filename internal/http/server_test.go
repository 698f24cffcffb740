package http

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"moff.io/wemove/internal/action"
	"moff.io/wemove/internal/config"
	"moff.io/wemove/internal/contract"
	"moff.io/wemove/internal/host"
	"moff.io/wemove/internal/modal"
	"moff.io/wemove/internal/provider"
	"moff.io/wemove/internal/provider/providertest"
	"moff.io/wemove/internal/session"
)

const artifactPath = "../../assets/abi/WeMove.json"

var alice = common.HexToAddress("0x25836239F7b632635F815689389C537133248edb")

func newTestServer(t *testing.T) (*Server, *host.Shell, *providertest.Fake) {
	gin.SetMode(gin.TestMode)
	parsed, err := contract.LoadArtifact(artifactPath)
	require.NoError(t, err)

	fake := providertest.New(10001, alice)
	fake.SetBalance(alice, big.NewInt(1e18))
	fake.CallFn = func(msg ethereum.CallMsg) ([]byte, error) {
		method, err := parsed.MethodById(msg.Data)
		if err != nil {
			return nil, err
		}
		return method.Outputs.Pack([]struct {
			Name  string
			Calls *big.Int
		}{})
	}
	manager := session.NewManager(modal.New([]modal.Option{{
		Name:    "fake",
		Connect: func(context.Context) (provider.Provider, error) { return fake, nil },
	}}, "fake", false, nil))
	t.Cleanup(func() { _ = manager.Disconnect(manager.Current()) })

	shell := host.NewShell()
	ctrl := action.NewController(manager, action.Surfaces{Button: shell, Alerter: shell, View: shell, App: shell}, action.Options{
		ContractAddress:     common.HexToAddress("0x64bd5A3F0f426Af103E250df611f2fF0b9706a63"),
		LoadArtifact:        func() (abi.ABI, error) { return contract.LoadArtifact(artifactPath) },
		ReceiptPollInterval: time.Millisecond,
	})
	ctrl.Start()
	s := NewServer(shell, ctrl)
	s.Apply(&config.Configuration{HTTP: config.HTTP{ActionTimeout: time.Minute}})
	return s, shell, fake
}

func do(s *Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestGetState(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := do(s, http.MethodGet, "/state", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "disconnected", gjson.Get(rec.Body.String(), "state").String())
	assert.Equal(t, action.ConnectLabel, gjson.Get(rec.Body.String(), "shell.main_button.text").String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestActionBeforeConnect(t *testing.T) {
	s, shell, _ := newTestServer(t)
	rec := do(s, http.MethodPost, "/actions/call?wait=true", "")
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	assert.Equal(t, action.MsgNotConnected, shell.AlertsSince(0)[0].Message)
}

func TestConnectAndLog(t *testing.T) {
	s, shell, fake := newTestServer(t)

	rec := do(s, http.MethodPost, "/main-button?wait=true", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	state := do(s, http.MethodGet, "/state", "").Body.String()
	assert.Equal(t, "connected", gjson.Get(state, "state").String())
	assert.Equal(t, "1.0000", gjson.Get(state, "shell.accounts.0.balance").String())

	rec = do(s, http.MethodPost, "/actions/log?wait=true", `{"name":"Alice"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, fake.Sends(), 1)
	assert.Empty(t, shell.Input.Value())

	rec = do(s, http.MethodGet, "/state?since=0", "")
	var body struct {
		Shell host.State `json:"shell"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Shell.Alerts)
	last := body.Shell.Alerts[len(body.Shell.Alerts)-1]
	assert.Equal(t, action.MsgLogged, last.Message)

	rec = do(s, http.MethodGet, "/state?since="+strconv.FormatInt(last.Seq, 10), "")
	assert.Empty(t, gjson.Get(rec.Body.String(), "shell.alerts").Array())
}

func TestLogValidation(t *testing.T) {
	s, _, fake := newTestServer(t)
	rec := do(s, http.MethodPost, "/actions/log", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(s, http.MethodPost, "/actions/log?wait=true", `{"name":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, fake.ChainCalls())
}

func TestAsyncTrigger(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := do(s, http.MethodPost, "/main-button", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "main-button", gjson.Get(rec.Body.String(), "trigger").String())
	require.Eventually(t, func() bool {
		return gjson.Get(do(s, http.MethodGet, "/state", "").Body.String(), "state").String() == "connected"
	}, 5*time.Second, 5*time.Millisecond)
}

func TestMainButtonNotClickable(t *testing.T) {
	s, shell, _ := newTestServer(t)
	shell.Disable()
	rec := do(s, http.MethodPost, "/main-button", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDisconnectAndReopen(t *testing.T) {
	s, _, fake := newTestServer(t)
	require.Equal(t, http.StatusOK, do(s, http.MethodPost, "/main-button?wait=true", "").Code)
	require.Equal(t, http.StatusOK, do(s, http.MethodPost, "/main-button?wait=true", "").Code)
	assert.Equal(t, 1, fake.Closes())

	state := do(s, http.MethodGet, "/state", "").Body.String()
	assert.True(t, gjson.Get(state, "shell.closed").Bool())
	assert.Equal(t, http.StatusConflict, do(s, http.MethodPost, "/main-button", "").Code)

	require.Equal(t, http.StatusOK, do(s, http.MethodPost, "/app/open", "").Code)
	state = do(s, http.MethodGet, "/state", "").Body.String()
	assert.False(t, gjson.Get(state, "shell.closed").Bool())
	assert.True(t, gjson.Get(state, "shell.main_button.visible").Bool())
}

func TestQRCode(t *testing.T) {
	s, shell, _ := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, do(s, http.MethodGet, "/walletconnect/qrcode", "").Code)

	require.NoError(t, shell.DisplayQRCode([]byte("\x89PNG")))
	rec := do(s, http.MethodGet, "/walletconnect/qrcode", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "\x89PNG", rec.Body.String())
}
