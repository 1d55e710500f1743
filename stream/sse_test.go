package stream

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/mcpgate/session"
)

func TestEncodeSSE_Frame(t *testing.T) {
	frame, err := EncodeSSE(session.NewHeartbeat("s-1"))
	require.NoError(t, err)

	require.True(t, bytes.HasPrefix(frame, []byte("event: message\ndata: ")))
	require.True(t, bytes.HasSuffix(frame, []byte("\n\n")))

	payload := bytes.TrimSuffix(bytes.TrimPrefix(frame, []byte("event: message\ndata: ")), []byte("\n\n"))
	assert.NotContains(t, string(payload), "\n")

	var got session.Event
	require.NoError(t, json.Unmarshal(payload, &got))
	assert.Equal(t, "s-1", got.SessionID)
}

func TestWriteFrame_ReusesBuffer(t *testing.T) {
	buf := frameBuffers.Get()
	defer frameBuffers.Put(buf)

	require.NoError(t, writeFrame(buf, session.NewHeartbeat("a")))
	first := buf.Len()
	buf.Reset()
	require.NoError(t, writeFrame(buf, session.NewHeartbeat("a")))
	assert.Equal(t, first, buf.Len())
}
