package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/mcpgate/internal/channel"
	"github.com/BaSui01/mcpgate/rpc"
	"github.com/BaSui01/mcpgate/session"
	"github.com/BaSui01/mcpgate/tools"
)

type testStack struct {
	dispatcher *rpc.Dispatcher
	sessions   *session.Registry
	recorder   *Recorder
}

func newTestStack(t *testing.T, opts ...Option) *testStack {
	t.Helper()
	logger := zaptest.NewLogger(t)

	registry := tools.NewRegistry(logger, nil)
	require.NoError(t, tools.RegisterBuiltins(registry))

	sessions := session.NewRegistry(channel.DefaultQueueConfig(), logger)
	recorder := NewRecorder()
	methods := NewMethods(registry, sessions, logger, opts...)

	return &testStack{
		dispatcher: rpc.NewDispatcher(methods, logger, rpc.WithObserver(recorder)),
		sessions:   sessions,
		recorder:   recorder,
	}
}

func (s *testStack) call(t *testing.T, body string) string {
	t.Helper()
	payload, status := s.dispatcher.HandleBody(context.Background(), []byte(body))
	require.Equal(t, http.StatusOK, status)
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return string(data)
}

func TestInitialize(t *testing.T) {
	s := newTestStack(t)

	got := s.call(t, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"result":{
		"protocolVersion":"2024-11-05",
		"capabilities":{"tools":{"listChanged":true}},
		"serverInfo":{"name":"ab-compat-railway-mcp","version":"0.3.0"}
	}}`, got)
}

func TestInitialize_CustomServerInfo(t *testing.T) {
	s := newTestStack(t, WithServerInfo("gate", "1.2.3"), WithProtocolVersion("2025-03-26"))

	got := s.call(t, `{"id":1,"method":"initialize"}`)
	assert.Contains(t, got, `"serverInfo":{"name":"gate","version":"1.2.3"}`)
	assert.Contains(t, got, `"protocolVersion":"2025-03-26"`)
}

func TestInitialized_BothSpellings(t *testing.T) {
	s := newTestStack(t)

	for _, method := range []string{"notifications/initialized", "notifications.initialized"} {
		got := s.call(t, `{"id":"n","method":"`+method+`"}`)
		assert.JSONEq(t, `{"jsonrpc":"2.0","id":"n","result":{"ok":true}}`, got)
	}
}

func TestToolsList(t *testing.T) {
	s := newTestStack(t)

	for _, method := range []string{"tools/list", "tools.list"} {
		var resp rpc.Response
		require.NoError(t, json.Unmarshal([]byte(s.call(t, `{"id":1,"method":"`+method+`"}`)), &resp))
		require.Nil(t, resp.Error)

		list := resp.Result.(map[string]any)["tools"].([]any)
		require.Len(t, list, 3)

		var names []string
		for _, item := range list {
			tool := item.(map[string]any)
			names = append(names, tool["name"].(string))
			assert.Contains(t, tool, "inputSchema")
			assert.Contains(t, tool, "input_schema")
			assert.Nil(t, tool["annotations"])
		}
		assert.Equal(t, []string{"digits", "reduce_digits", "echo"}, names)
	}
}

func TestToolsCall_Scenarios(t *testing.T) {
	s := newTestStack(t)

	tests := []struct {
		name string
		body string
		want string
	}{
		{
			"A digits 9999",
			`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"digits","arguments":{"number":9999}}}`,
			`{"jsonrpc":"2.0","id":1,"result":{"content":[{"type":"text","text":"9"}]}}`,
		},
		{
			"B digits -38",
			`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"digits","arguments":{"number":-38}}}`,
			`{"jsonrpc":"2.0","id":2,"result":{"content":[{"type":"text","text":"2"}]}}`,
		},
		{
			"C digits 0",
			`{"jsonrpc":"2.0","id":3,"method":"tools.call","params":{"name":"digits","arguments":{"number":0}}}`,
			`{"jsonrpc":"2.0","id":3,"result":{"content":[{"type":"text","text":"0"}]}}`,
		},
		{
			"D echo",
			`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"echo","arguments":{"text":"hello"}}}`,
			`{"jsonrpc":"2.0","id":4,"result":{"content":[{"type":"text","text":"hello"}]}}`,
		},
		{
			"numeric string coerced",
			`{"id":5,"method":"tools/call","params":{"name":"reduce_digits","arguments":{"number":"123456789"}}}`,
			`{"jsonrpc":"2.0","id":5,"result":{"content":[{"type":"text","text":"9"}]}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.JSONEq(t, tt.want, s.call(t, tt.body))
		})
	}
}

func TestBatch_ScenarioE(t *testing.T) {
	s := newTestStack(t)

	got := s.call(t, `[
		{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"digits","arguments":{"number":9999}}},
		{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"echo","arguments":{"text":"hello"}}}
	]`)
	assert.JSONEq(t, `[
		{"jsonrpc":"2.0","id":1,"result":{"content":[{"type":"text","text":"9"}]}},
		{"jsonrpc":"2.0","id":4,"result":{"content":[{"type":"text","text":"hello"}]}}
	]`, got)
}

func TestUnknownMethod_ScenarioF(t *testing.T) {
	s := newTestStack(t)

	got := s.call(t, `{"jsonrpc":"2.0","id":"req-42","method":"bogus/method"}`)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":"req-42","error":{"code":-32601,"message":"Method not found"}}`, got)
}

func TestToolsCall_ValidationErrors(t *testing.T) {
	s := newTestStack(t)

	tests := []struct {
		name    string
		params  string
		message string
	}{
		{"missing name", `{"arguments":{}}`, "'name' must be a non-empty string"},
		{"name not string", `{"name":5}`, "'name' must be a non-empty string"},
		{"arguments not object", `{"name":"echo","arguments":"hi"}`, "'arguments' must be an object"},
		{"unknown tool", `{"name":"nope","arguments":{}}`, "Unknown tool: nope"},
		{"missing number", `{"name":"digits","arguments":{}}`, "'arguments.number' is required"},
		{"missing arguments", `{"name":"echo"}`, "'arguments' is required"},
		{"null arguments", `{"name":"echo","arguments":null}`, "'arguments' is required"},
		{"params not object", `[1]`, "params must be an object"},
		{"number not integer", `{"name":"digits","arguments":{"number":"abc"}}`, "'number' must be integer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp rpc.Response
			require.NoError(t, json.Unmarshal([]byte(s.call(t, `{"id":9,"method":"tools/call","params":`+tt.params+`}`)), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, rpc.CodeServerError, resp.Error.Code)
			assert.Equal(t, "HTTP error: "+tt.message, resp.Error.Message)
			assert.Equal(t, "9", string(resp.ID))
		})
	}
}

func TestToolsCall_UnknownToolError(t *testing.T) {
	s := newTestStack(t)

	got := s.call(t, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"nope","arguments":{}}}`)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"HTTP error: Unknown tool: nope"}}`, got)
}

func TestMethodsIgnoringParams_AcceptArrayParams(t *testing.T) {
	s := newTestStack(t)

	for _, method := range []string{"initialize", "notifications/initialized", "tools/list"} {
		var resp rpc.Response
		require.NoError(t, json.Unmarshal([]byte(s.call(t, `{"id":1,"method":"`+method+`","params":[1]}`)), &resp))
		assert.Nil(t, resp.Error, method)
	}
}

func TestToolsCall_PushesToSession(t *testing.T) {
	s := newTestStack(t)
	sess := s.sessions.Register("sub-1")

	s.call(t, `{"id":1,"method":"tools/call","params":{"name":"echo","arguments":{"text":"hi"},"session_id":"sub-1"}}`)
	s.call(t, `{"id":2,"method":"tools/call","params":{"name":"digits","arguments":{"number":38,"client_id":"sub-1"}}}`)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ev, err := sess.Next(ctx)
	require.NoError(t, err)
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type":"tool_result","tool":"echo",
		"arguments":{"text":"hi"},
		"result":{"content":[{"type":"text","text":"hi"}]},
		"session_id":"sub-1"
	}`, string(data))

	ev, err = sess.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "digits", ev.Tool)
	assert.Equal(t, TextResult("2"), ev.Result)
}

func TestBatch_PushesInInputOrder(t *testing.T) {
	logger := zaptest.NewLogger(t)
	registry := tools.NewRegistry(logger, nil)
	require.NoError(t, tools.RegisterBuiltins(registry))
	sessions := session.NewRegistry(channel.DefaultQueueConfig(), logger)
	dispatcher := rpc.NewDispatcher(NewMethods(registry, sessions, logger), logger, rpc.WithBatchConcurrency(8))

	sess := sessions.Register("s1")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for round := 0; round < 50; round++ {
		body := "["
		for i := 0; i < 8; i++ {
			if i > 0 {
				body += ","
			}
			body += fmt.Sprintf(`{"id":%d,"method":"tools/call","params":{"name":"echo","arguments":{"text":"m%d"},"session_id":"s1"}}`, i, i)
		}
		body += "]"
		_, status := dispatcher.HandleBody(context.Background(), []byte(body))
		require.Equal(t, http.StatusOK, status)

		require.Equal(t, 8, sess.Pending())
		for i := 0; i < 8; i++ {
			ev, err := sess.Next(ctx)
			require.NoError(t, err)
			assert.Equal(t, fmt.Sprintf("m%d", i), ev.Arguments["text"], "round %d", round)
		}
	}
}

func TestRecorder_KeepsLastBatchEntry(t *testing.T) {
	s := newTestStack(t)

	for round := 0; round < 20; round++ {
		s.call(t, `[
			{"jsonrpc":"2.0","id":1,"method":"initialize"},
			{"jsonrpc":"2.0","id":2,"method":"tools/list"},
			{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"digits","arguments":{"number":38}}}
		]`)
		req, ok := s.recorder.Snapshot().LastRequest.(rpc.Request)
		require.True(t, ok)
		assert.Equal(t, "3", string(req.ID))
	}
}

func TestToolsCall_UnknownSessionDoesNotFail(t *testing.T) {
	s := newTestStack(t)

	got := s.call(t, `{"id":1,"method":"tools/call","params":{"name":"echo","arguments":{"text":"hi"},"session_id":"ghost"}}`)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"result":{"content":[{"type":"text","text":"hi"}]}}`, got)
	assert.Equal(t, 0, s.sessions.Len())
}

func TestRecorder_TracksLastExchange(t *testing.T) {
	s := newTestStack(t)

	assert.Nil(t, s.recorder.Snapshot().LastRequest)

	s.call(t, `{"jsonrpc":"2.0","id":1,"method":"initialize"}`)
	snap := s.recorder.Snapshot()
	req, ok := snap.LastRequest.(rpc.Request)
	require.True(t, ok)
	assert.Equal(t, "initialize", req.Method)
	assert.IsType(t, InitializeResult{}, snap.LastResponse)
	require.NotNil(t, snap.RecordedAt)

	s.call(t, `{"jsonrpc":"2.0","id":2,"method":"bogus"}`)
	snap = s.recorder.Snapshot()
	errObj, ok := snap.LastResponse.(*rpc.Error)
	require.True(t, ok)
	assert.Equal(t, rpc.CodeMethodNotFound, errObj.Code)
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "x", stringify("x"))
	assert.Equal(t, "9", stringify(9))
	assert.Equal(t, "12", stringify(json.Number("12")))
	assert.Equal(t, "", stringify(nil))
	assert.Equal(t, `{"a":1}`, stringify(map[string]int{"a": 1}))
}

func TestSessionID(t *testing.T) {
	assert.Equal(t, "p", sessionID(map[string]any{"session_id": "p", "client_id": "c"}, map[string]any{"session_id": "a"}))
	assert.Equal(t, "c", sessionID(map[string]any{"client_id": "c"}, map[string]any{}))
	assert.Equal(t, "a", sessionID(map[string]any{"session_id": ""}, map[string]any{"session_id": "a"}))
	assert.Equal(t, "", sessionID(map[string]any{"session_id": 5}, map[string]any{}))
}
