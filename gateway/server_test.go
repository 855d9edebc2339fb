package gateway

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"github.com/signalgw/gateway/events"
	"github.com/signalgw/gateway/metrics"
	"github.com/signalgw/gateway/rpc"
	"github.com/signalgw/gateway/webhook"
)

type rpcCall struct {
	method string
	params map[string]any
}

// fakeRPC stands in for the daemon connection and records every call.
type fakeRPC struct {
	mu      sync.Mutex
	calls   []rpcCall
	handler func(method string, params json.RawMessage) (json.RawMessage, error)
}

func (f *fakeRPC) Call(method string, params json.RawMessage) (json.RawMessage, error) {
	decoded := map[string]any{}
	if params != nil {
		json.Unmarshal(params, &decoded)
	}
	f.mu.Lock()
	f.calls = append(f.calls, rpcCall{method: method, params: decoded})
	f.mu.Unlock()

	if f.handler != nil {
		return f.handler(method, params)
	}
	return json.RawMessage(`{"ok":true}`), nil
}

func (f *fakeRPC) lastCall(t *testing.T) rpcCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.calls, "no RPC call was made")
	return f.calls[len(f.calls)-1]
}

func (f *fakeRPC) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type testGateway struct {
	server   *Server
	baseURL  string
	rpc      *fakeRPC
	bus      *events.Bus
	metrics  *metrics.Metrics
	registry *webhook.Registry
}

func startGateway(t *testing.T) *testGateway {
	t.Helper()
	fake := &fakeRPC{}
	bus := events.NewBus()
	t.Cleanup(bus.Close)
	m := metrics.New()
	registry := webhook.NewRegistry()

	server, err := NewServer(fake, bus, m, registry, WithListenAddr("127.0.0.1:0"))
	require.NoError(t, err)

	go server.Run()
	t.Cleanup(func() { server.Stop() })

	require.Eventually(t, func() bool {
		return server.Addr() != ""
	}, 5*time.Second, 10*time.Millisecond, "server never bound a port")

	return &testGateway{
		server:   server,
		baseURL:  "http://" + server.Addr(),
		rpc:      fake,
		bus:      bus,
		metrics:  m,
		registry: registry,
	}
}

func (g *testGateway) request(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req, err := http.NewRequest(method, g.baseURL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealth(t *testing.T) {
	g := startGateway(t)
	resp := g.request(t, http.MethodGet, "/v1/health", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 0, g.rpc.callCount(), "health must not touch the daemon")
}

func TestAbout(t *testing.T) {
	g := startGateway(t)
	resp := g.request(t, http.MethodGet, "/v1/about", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeJSON(t, resp)
	versions := body["versions"].(map[string]any)
	assert.Equal(t, Version, versions["gateway"])
}

func TestSendV2(t *testing.T) {
	g := startGateway(t)
	g.rpc.handler = func(method string, params json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`{"timestamp":1700000000000}`), nil
	}

	resp := g.request(t, http.MethodPost, "/v2/send",
		`{"number":"+491713920000","recipients":["+491713920001"],"message":"hi"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeJSON(t, resp)
	assert.Equal(t, float64(1700000000000), body["timestamp"])

	call := g.rpc.lastCall(t)
	assert.Equal(t, "send", call.method)
	assert.Equal(t, "hi", call.params["message"])
	assert.Equal(t, uint64(1), g.metrics.Snapshot().MessagesSent)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		expStatus int
	}{
		{"timeout maps to 504", rpc.ErrTimeout, http.StatusGatewayTimeout},
		{"daemon error maps to 400", &rpc.RemoteError{Message: "Invalid params"}, http.StatusBadRequest},
		{"closed connection maps to 400", rpc.ErrClosed, http.StatusBadRequest},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			g := startGateway(t)
			g.rpc.handler = func(method string, params json.RawMessage) (json.RawMessage, error) {
				return nil, c.err
			}

			resp := g.request(t, http.MethodPost, "/v2/send", `{"message":"hi"}`)
			assert.Equal(t, c.expStatus, resp.StatusCode)

			body := decodeJSON(t, resp)
			assert.NotEmpty(t, body["error"])
			// A failed send never counts as sent.
			assert.Equal(t, uint64(0), g.metrics.Snapshot().MessagesSent)
		})
	}
}

func TestAccountParamInjection(t *testing.T) {
	g := startGateway(t)

	resp := g.request(t, http.MethodPost, "/v1/register/+491713920000/verify/123-456", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	call := g.rpc.lastCall(t)
	assert.Equal(t, "verify", call.method)
	assert.Equal(t, "+491713920000", call.params["account"])
	assert.Equal(t, "123-456", call.params["verificationCode"])
}

func TestRemoveDeviceDispatch(t *testing.T) {
	g := startGateway(t)

	resp := g.request(t, http.MethodDelete, "/v1/devices/+491713920000/3", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	call := g.rpc.lastCall(t)
	assert.Equal(t, "removeDevice", call.method)
	assert.Equal(t, float64(3), call.params["deviceId"])

	resp = g.request(t, http.MethodDelete, "/v1/devices/+491713920000/local-data", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	call = g.rpc.lastCall(t)
	assert.Equal(t, "deleteLocalAccountData", call.method)
	assert.Equal(t, "+491713920000", call.params["account"])

	before := g.rpc.callCount()
	resp = g.request(t, http.MethodDelete, "/v1/devices/+491713920000/not-a-number", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, before, g.rpc.callCount(), "a bad device id must not reach the daemon")
}

func TestGroupParamTranslation(t *testing.T) {
	g := startGateway(t)

	resp := g.request(t, http.MethodPost, "/v1/groups/+491713920000",
		`{"name":"team","members":["+491713920001"],"permissions":{"add_members":"only-admins"}}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	call := g.rpc.lastCall(t)
	assert.Equal(t, "updateGroup", call.method)
	assert.Equal(t, "team", call.params["name"])
	assert.Equal(t, []any{"+491713920001"}, call.params["member"])
	assert.Equal(t, "only-admins", call.params["set-permission-add-member"])

	resp = g.request(t, http.MethodPost, "/v1/groups/+491713920000/grp1/members",
		`{"members":["+491713920002"]}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	call = g.rpc.lastCall(t)
	assert.Equal(t, "updateGroup", call.method)
	assert.Equal(t, "grp1", call.params["group-id"])
	assert.Equal(t, []any{"+491713920002"}, call.params["addMember"])

	resp = g.request(t, http.MethodDelete, "/v1/groups/+491713920000/grp1/admins",
		`{"admins":["+491713920002"]}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	call = g.rpc.lastCall(t)
	assert.Equal(t, []any{"+491713920002"}, call.params["removeAdmin"])

	resp = g.request(t, http.MethodDelete, "/v1/groups/+491713920000/grp1", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	call = g.rpc.lastCall(t)
	assert.Equal(t, "quitGroup", call.method)
	assert.Equal(t, true, call.params["delete"])
}

func TestWebhookEndpoints(t *testing.T) {
	g := startGateway(t)

	resp := g.request(t, http.MethodPost, "/v1/webhooks",
		`{"url":"http://hooks.example/x","events":["message"]}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeJSON(t, resp)
	id := created["id"].(string)
	require.NotEmpty(t, id)

	resp = g.request(t, http.MethodGet, "/v1/webhooks", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0]["id"])

	resp = g.request(t, http.MethodDelete, "/v1/webhooks/"+id, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = g.request(t, http.MethodDelete, "/v1/webhooks/"+id, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = g.request(t, http.MethodPost, "/v1/webhooks", `{"events":["message"]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestQRCodeLinkRaw(t *testing.T) {
	g := startGateway(t)
	g.rpc.handler = func(method string, params json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`{"deviceLinkUri":"sgnl://linkdevice?uuid=abc"}`), nil
	}

	resp := g.request(t, http.MethodGet, "/v1/qrcodelink/raw?device_name=laptop", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")

	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "sgnl://linkdevice?uuid=abc", buf.String())

	call := g.rpc.lastCall(t)
	assert.Equal(t, "startLink", call.method)
	assert.Equal(t, "laptop", call.params["deviceName"])
}

func TestReceiveWebSocket(t *testing.T) {
	g := startGateway(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	wsURL := "ws://" + g.server.Addr() + "/v1/receive/+491713920000"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool {
		return g.metrics.Snapshot().WSClients == 1
	}, 5*time.Second, 10*time.Millisecond)

	event := `{"envelope":{"dataMessage":{"message":"hi"}}}`
	// The subscription is created inside the handler; publish until the
	// feed observably has it.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(25 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				g.bus.Publish([]byte(event))
			}
		}
	}()

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, event, string(data))
}

func TestSSEEvents(t *testing.T) {
	g := startGateway(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/v1/events/+491713920000", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	event := `{"envelope":{"receiptMessage":{"isDelivery":true}}}`
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(25 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				g.bus.Publish([]byte(event))
			}
		}
	}()

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") {
			assert.JSONEq(t, event, strings.TrimSpace(strings.TrimPrefix(line, "data: ")))
			return
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	g := startGateway(t)

	resp := g.request(t, http.MethodPost, "/v2/send", `{"message":"hi"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = g.request(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	body := buf.String()

	assert.Contains(t, body, "# TYPE signal_messages_sent_total counter")
	assert.Contains(t, body, "signal_messages_sent_total 1")
	assert.Contains(t, body, "signal_rpc_calls_total 1")
	assert.Contains(t, body, "signal_ws_clients_active 0")
	assert.Contains(t, body, fmt.Sprintf("signal_messages_received_total %d", 0))
}

func TestNotImplementedEndpoints(t *testing.T) {
	g := startGateway(t)

	resp := g.request(t, http.MethodGet, "/v1/contacts/+491713920000/+491713920001/avatar", "")
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)

	resp = g.request(t, http.MethodGet, "/v1/groups/+491713920000/grp1/avatar", "")
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestStopBeforeRun(t *testing.T) {
	fake := &fakeRPC{}
	bus := events.NewBus()
	defer bus.Close()

	server, err := NewServer(fake, bus, metrics.New(), webhook.NewRegistry(),
		WithListenAddr("127.0.0.1:0"))
	require.NoError(t, err)

	// A shutdown that races a just-started Run must still win.
	require.NoError(t, server.Stop())

	done := make(chan error, 1)
	go func() { done <- server.Run() }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run kept serving after Stop")
	}
}

func TestTLSConfigValidation(t *testing.T) {
	fake := &fakeRPC{}
	bus := events.NewBus()
	defer bus.Close()

	_, err := NewServer(fake, bus, metrics.New(), webhook.NewRegistry(), WithTLS("cert.pem", ""))
	require.Error(t, err)
}
