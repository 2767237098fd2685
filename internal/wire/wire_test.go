package wire

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRequestEnvelope(t *testing.T) {
	t.Run("valid envelope", func(t *testing.T) {
		frames := [][]byte{[]byte("client-1"), {}, []byte(`{"url":"http://x/"}`)}

		env, err := DecodeRequestEnvelope(frames)

		require.NoError(t, err)
		assert.Equal(t, []byte("client-1"), env.ClientID)
		assert.Equal(t, []byte(`{"url":"http://x/"}`), env.Body)
	})

	t.Run("wrong frame count", func(t *testing.T) {
		_, err := DecodeRequestEnvelope([][]byte{[]byte("client-1"), {}})
		assert.ErrorIs(t, err, ErrProtocolViolation)
	})

	t.Run("non-empty delimiter", func(t *testing.T) {
		_, err := DecodeRequestEnvelope([][]byte{[]byte("client-1"), []byte("oops"), []byte("body")})
		assert.ErrorIs(t, err, ErrProtocolViolation)
	})
}

func TestRequestEnvelopeRoundTrip(t *testing.T) {
	env := RequestEnvelope{ClientID: []byte("c1"), Body: []byte("body")}

	decoded, err := DecodeRequestEnvelope(env.Encode())

	require.NoError(t, err)
	assert.Equal(t, env, decoded)
}

func TestDecodeDispatchInbound(t *testing.T) {
	t.Run("valid inbound frames", func(t *testing.T) {
		env := DispatchEnvelope{WorkerID: []byte("W1"), ClientID: []byte("c1"), Body: []byte("body")}
		sent := env.Encode()
		inbound := sent[1:] // ROUTER strips the routing frame on the way out

		decoded, err := DecodeDispatchInbound([]byte("W1"), inbound)

		require.NoError(t, err)
		assert.Equal(t, env, decoded)
	})

	t.Run("short envelope is a protocol violation", func(t *testing.T) {
		_, err := DecodeDispatchInbound([]byte("W1"), [][]byte{{}, []byte("c1")})
		assert.ErrorIs(t, err, ErrProtocolViolation)
	})
}

func TestDecodeBackendFrames(t *testing.T) {
	t.Run("ready control word", func(t *testing.T) {
		env, err := DecodeBackendFrames([][]byte{[]byte(WorkerReady)})
		require.NoError(t, err)
		assert.True(t, env.IsControl())
		assert.Equal(t, WorkerReady, env.Control)
	})

	t.Run("gone control word", func(t *testing.T) {
		env, err := DecodeBackendFrames([][]byte{[]byte(WorkerGone)})
		require.NoError(t, err)
		assert.Equal(t, WorkerGone, env.Control)
	})

	t.Run("unrecognized bare word", func(t *testing.T) {
		_, err := DecodeBackendFrames([][]byte{[]byte("BOGUS")})
		assert.ErrorIs(t, err, ErrProtocolViolation)
	})

	t.Run("content reply", func(t *testing.T) {
		env, err := DecodeBackendFrames([][]byte{[]byte("c1"), {}, []byte(StatusOK), {}, []byte("ok")})
		require.NoError(t, err)
		assert.False(t, env.IsControl())
		assert.Equal(t, StatusOK, env.Status)
		assert.Equal(t, []byte("ok"), env.Content)
	})

	t.Run("wrong frame count", func(t *testing.T) {
		_, err := DecodeBackendFrames([][]byte{[]byte("c1"), {}})
		assert.True(t, errors.Is(err, ErrProtocolViolation))
	})
}

func TestResponseEnvelopeEncode(t *testing.T) {
	env := ResponseEnvelope{
		ClientID: []byte("c1"),
		WorkerID: []byte("W42"),
		Status:   StatusOK,
		Content:  []byte("note"),
	}

	frames := env.Encode()

	require.Len(t, frames, 7)
	assert.Equal(t, []byte("c1"), frames[0])
	assert.Equal(t, []byte("W42"), frames[2])
	assert.Equal(t, []byte(StatusOK), frames[4])
	assert.Equal(t, []byte("note"), frames[6])
}

func TestEncodeControl(t *testing.T) {
	frames := EncodeControl(WorkerReady)
	require.Len(t, frames, 2)
	assert.Empty(t, frames[0])
	assert.Equal(t, []byte(WorkerReady), frames[1])
}

func TestEncodeReply(t *testing.T) {
	frames := EncodeReply([]byte("c1"), StatusOK, []byte("ok"))
	require.Len(t, frames, 6)
	assert.Empty(t, frames[0])
	assert.Equal(t, []byte("c1"), frames[1])
	assert.Empty(t, frames[2])
	assert.Equal(t, []byte(StatusOK), frames[3])
	assert.Empty(t, frames[4])
	assert.Equal(t, []byte("ok"), frames[5])
}

// TestWorkerToBrokerRoundTrip simulates what a worker's DEALER socket sends
// and what the backend ROUTER hands the broker after prepending the peer
// identity frame, proving encode and decode agree end to end rather than
// only in isolation.
func TestWorkerToBrokerRoundTrip(t *testing.T) {
	t.Run("control word", func(t *testing.T) {
		sent := EncodeControl(WorkerReady)
		received := append([][]byte{[]byte("W1")}, sent...) // ROUTER prepends identity

		workerID := received[0]
		require.Empty(t, received[1])
		env, err := DecodeBackendFrames(received[2:])

		require.NoError(t, err)
		assert.Equal(t, []byte("W1"), workerID)
		assert.True(t, env.IsControl())
		assert.Equal(t, WorkerReady, env.Control)
	})

	t.Run("content reply", func(t *testing.T) {
		sent := EncodeReply([]byte("c1"), StatusOK, []byte("req-W1-1-1.pdf"))
		received := append([][]byte{[]byte("W1")}, sent...)

		workerID := received[0]
		require.Empty(t, received[1])
		env, err := DecodeBackendFrames(received[2:])

		require.NoError(t, err)
		assert.Equal(t, []byte("W1"), workerID)
		assert.False(t, env.IsControl())
		assert.Equal(t, []byte("c1"), env.ClientID)
		assert.Equal(t, StatusOK, env.Status)
		assert.Equal(t, []byte("req-W1-1-1.pdf"), env.Content)
	})
}
