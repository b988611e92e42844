package network

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	frame, err := Encode(MsgTypePlayerAction, []byte(`{"type":"step","pad":2}`))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0xCA}, frame[:2])

	p, err := Decode(frame)
	require.NoError(t, err)
	assert.EqualValues(t, MsgTypePlayerAction, p.MsgID)
	assert.EqualValues(t, 23, p.Length)
	assert.JSONEq(t, `{"type":"step","pad":2}`, string(p.Data))

	empty, err := Encode(MsgTypeHeartbeat, nil)
	require.NoError(t, err)
	p, err = Decode(empty)
	require.NoError(t, err)
	assert.Empty(t, p.Data)
}

func TestDecode_Short(t *testing.T) {
	_, err := Decode([]byte{0, 1, 0})
	assert.ErrorIs(t, err, io.ErrShortBuffer)

	// declares 10 bytes, carries 2
	_, err = Decode([]byte{0, 1, 0, 10, 'h', 'i'})
	assert.ErrorIs(t, err, io.ErrShortBuffer)
}

func TestEncode_TooLarge(t *testing.T) {
	_, err := Encode(1, make([]byte, MaxPayload+1))
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestWSConnection_RoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ws := NewWSConnection(conn)
		defer ws.Close()
		ws.SetHeartbeat(time.Second)
		p, err := ws.ReadPacket()
		if err != nil {
			return
		}
		ws.Send(MsgTypeTowerState, p.Data)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	client := NewWSConnection(conn)
	defer client.Close()

	require.NoError(t, client.Send(MsgTypePlayerAction, []byte("ping")))
	p, err := client.ReadPacket()
	require.NoError(t, err)
	assert.EqualValues(t, MsgTypeTowerState, p.MsgID)
	assert.Equal(t, "ping", string(p.Data))
	assert.NotNil(t, client.RemoteAddr())
}
