// Package wire implements the multipart envelope framing shared by the
// broker, worker, and client: a thin layer over a ZeroMQ ROUTER/DEALER
// socket that knows how to read and write the frame sequences described by
// the protocol, and nothing else.
package wire

import (
	"errors"
	"fmt"

	czmq "github.com/zeromq/goczmq/v4"
)

// Status codes carried on the wire as plain strings, never numeric.
const (
	StatusOK          = "200"
	StatusBadRequest  = "400"
	StatusBadGateway  = "502"
	StatusUnavailable = "503"
)

// Worker control words.
const (
	WorkerReady = "READY"
	WorkerGone  = "GONE"
	WorkerStop  = "STOP"
)

// ErrProtocolViolation marks a malformed envelope: wrong frame count, a
// non-empty delimiter where one was required, or an unrecognized control
// word. Callers log and drop the envelope; they never propagate it further.
var ErrProtocolViolation = errors.New("wire: protocol violation")

// Socket is the subset of czmq's socket surface the wire layer needs. It
// exists so tests can exercise framing logic against a fake without a real
// ZeroMQ context.
type Socket interface {
	RecvMessage() ([][]byte, error)
	SendMessage(frames [][]byte) error
}

var _ Socket = (*czmq.Sock)(nil)

// RequestEnvelope is the client-to-broker frame set: client-id, empty
// delimiter, request body.
type RequestEnvelope struct {
	ClientID []byte
	Body     []byte
}

// DecodeRequestEnvelope parses the three frames a client sends to the
// broker's frontend socket.
func DecodeRequestEnvelope(frames [][]byte) (RequestEnvelope, error) {
	if len(frames) != 3 {
		return RequestEnvelope{}, fmt.Errorf("%w: request envelope wants 3 frames, got %d", ErrProtocolViolation, len(frames))
	}
	if len(frames[1]) != 0 {
		return RequestEnvelope{}, fmt.Errorf("%w: request envelope delimiter not empty", ErrProtocolViolation)
	}
	return RequestEnvelope{ClientID: frames[0], Body: frames[2]}, nil
}

// Encode renders the envelope back into wire frames.
func (e RequestEnvelope) Encode() [][]byte {
	return [][]byte{e.ClientID, {}, e.Body}
}

// DispatchEnvelope is the broker-to-worker frame set: worker-id, empty,
// client-id, empty, request body.
type DispatchEnvelope struct {
	WorkerID []byte
	ClientID []byte
	Body     []byte
}

// Encode renders the five dispatch frames.
func (e DispatchEnvelope) Encode() [][]byte {
	return [][]byte{e.WorkerID, {}, e.ClientID, {}, e.Body}
}

// DecodeDispatchInbound parses what a worker's DEALER socket actually sees
// after the ROUTER backend has stripped the leading worker-id routing
// frame on the way out: empty, client-id, empty, body (4 frames). The
// worker-id is not on this wire form — the worker already knows its own
// identity — so the caller supplies it to reconstruct a DispatchEnvelope.
func DecodeDispatchInbound(workerID []byte, frames [][]byte) (DispatchEnvelope, error) {
	if len(frames) != 4 {
		return DispatchEnvelope{}, fmt.Errorf("%w: dispatch envelope wants 4 frames, got %d", ErrProtocolViolation, len(frames))
	}
	if len(frames[0]) != 0 || len(frames[2]) != 0 {
		return DispatchEnvelope{}, fmt.Errorf("%w: dispatch envelope delimiter not empty", ErrProtocolViolation)
	}
	return DispatchEnvelope{WorkerID: workerID, ClientID: frames[1], Body: frames[3]}, nil
}

// ReplyEnvelope is what a worker sends back on its backend connection: a
// bare control word (READY/GONE), or a full client-id/status/content reply.
type ReplyEnvelope struct {
	Control  string // READY or GONE, empty if this is a content reply
	ClientID []byte
	Status   string
	Content  []byte
}

// IsControl reports whether this reply is a bare control word rather than a
// client-addressed reply.
func (e ReplyEnvelope) IsControl() bool {
	return e.Control != ""
}

// EncodeControl renders a bare READY/GONE reply a worker sends on its
// DEALER socket: empty, control. The worker-id is not on the wire here —
// the backend ROUTER prepends it on receive — so the worker must not send
// it itself.
func EncodeControl(control string) [][]byte {
	return [][]byte{{}, []byte(control)}
}

// EncodeReply renders a content reply a worker sends on its DEALER socket:
// empty, client-id, empty, status, empty, content. As with EncodeControl,
// the worker-id frame is supplied by the ROUTER on receive, not by the
// worker.
func EncodeReply(clientID []byte, status string, content []byte) [][]byte {
	return [][]byte{{}, clientID, {}, []byte(status), {}, content}
}

// DecodeBackendFrames parses what the broker reads off its backend socket.
// The worker-id and its delimiter have already been stripped by the caller
// (the broker needs the worker-id before it knows how to interpret the
// rest), so this only decodes the remainder.
func DecodeBackendFrames(rest [][]byte) (ReplyEnvelope, error) {
	if len(rest) == 1 {
		word := string(rest[0])
		if word == WorkerReady || word == WorkerGone {
			return ReplyEnvelope{Control: word}, nil
		}
		return ReplyEnvelope{}, fmt.Errorf("%w: unrecognized bare worker control %q", ErrProtocolViolation, word)
	}
	if len(rest) != 5 {
		return ReplyEnvelope{}, fmt.Errorf("%w: worker reply wants 1 or 5 frames, got %d", ErrProtocolViolation, len(rest))
	}
	if len(rest[1]) != 0 || len(rest[3]) != 0 {
		return ReplyEnvelope{}, fmt.Errorf("%w: worker reply delimiter not empty", ErrProtocolViolation)
	}
	return ReplyEnvelope{ClientID: rest[0], Status: string(rest[2]), Content: rest[4]}, nil
}

// ResponseEnvelope is the broker-to-client frame set: client-id, empty,
// worker-id, empty, status, empty, content.
type ResponseEnvelope struct {
	ClientID []byte
	WorkerID []byte
	Status   string
	Content  []byte
}

// Encode renders the seven response frames.
func (e ResponseEnvelope) Encode() [][]byte {
	return [][]byte{e.ClientID, {}, e.WorkerID, {}, []byte(e.Status), {}, e.Content}
}
