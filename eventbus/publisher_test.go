package eventbus

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockConn struct {
	subjects []string
	payloads [][]byte
	err      error
	drained  bool
}

func (m *mockConn) Publish(subject string, data []byte) error {
	if m.err != nil {
		return m.err
	}
	m.subjects = append(m.subjects, subject)
	m.payloads = append(m.payloads, data)
	return nil
}

func (m *mockConn) Drain() error {
	m.drained = true
	return nil
}

func TestPublisher_Publish(t *testing.T) {
	conn := &mockConn{}
	p := NewPublisher(conn, "qq")

	require.NoError(t, p.Publish("measurement", map[string]string{"room_id": "superposition-tower"}))
	require.Len(t, conn.subjects, 1)
	assert.Equal(t, "qq.measurement", conn.subjects[0])

	var got map[string]string
	require.NoError(t, json.Unmarshal(conn.payloads[0], &got))
	assert.Equal(t, "superposition-tower", got["room_id"])

	require.NoError(t, p.Close())
	assert.True(t, conn.drained)
}

func TestPublisher_DefaultSubject(t *testing.T) {
	p := NewPublisher(&mockConn{}, "")
	assert.Equal(t, "quantumquest.completion", p.Subject("completion"))
}

func TestPublisher_Errors(t *testing.T) {
	boom := errors.New("boom")
	p := NewPublisher(&mockConn{err: boom}, "qq")
	assert.ErrorIs(t, p.Publish("x", 1), boom)

	assert.Error(t, p.Publish("x", make(chan int)))
}
