// Package client provides a small DEALER-socket client used by the render
// test/operator harness. It is not part of the broker/worker protocol
// surface — it is a convenience for driving a cluster from the command line.
package client

import (
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	czmq "github.com/zeromq/goczmq/v4"
)

// RenderRequest mirrors the JSON body a worker expects, so the harness can
// assemble one from CLI flags without reaching into internal/render.
type RenderRequest struct {
	URL    string                 `json:"url"`
	Global map[string]interface{} `json:"global,omitempty"`
	Object map[string]interface{} `json:"object,omitempty"`
}

// Client is a single-use DEALER connection to a broker's frontend.
type Client struct {
	endpoint string
	timeout  time.Duration
	sock     *czmq.Sock
	poller   *czmq.Poller
}

// Dial connects to the broker frontend at endpoint.
func Dial(endpoint string, timeout time.Duration) (*Client, error) {
	sock, err := czmq.NewDealer(endpoint)
	if err != nil {
		return nil, fmt.Errorf("client: failed to create DEALER socket: %w", err)
	}

	poller, err := czmq.NewPoller()
	if err != nil {
		sock.Destroy()
		return nil, fmt.Errorf("client: failed to create poller: %w", err)
	}
	if err := poller.Add(sock); err != nil {
		poller.Destroy()
		sock.Destroy()
		return nil, fmt.Errorf("client: failed to register socket with poller: %w", err)
	}

	log.WithField("endpoint", endpoint).Debug("connected to broker frontend")

	return &Client{endpoint: endpoint, timeout: timeout, sock: sock, poller: poller}, nil
}

// Close releases the underlying socket and poller.
func (c *Client) Close() {
	if c.poller != nil {
		c.poller.Destroy()
		c.poller = nil
	}
	if c.sock != nil {
		c.sock.Destroy()
		c.sock = nil
	}
}

// Render sends req to the broker and blocks for a reply or the configured
// timeout. On a 200 status, content is the rendered artifact's filename as
// reported by the worker.
func (c *Client) Render(req RenderRequest) (status string, content []byte, err error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", nil, fmt.Errorf("client: failed to encode request: %w", err)
	}

	// A DEALER socket must supply only the empty delimiter frame; the
	// broker's frontend ROUTER prepends our identity on receive to form
	// the 3-frame RequestEnvelope the broker decodes.
	if err := c.sock.SendMessage([][]byte{{}, body}); err != nil {
		return "", nil, fmt.Errorf("client: failed to send request: %w", err)
	}

	socket, err := c.poller.Wait(int(c.timeout / time.Millisecond))
	if err != nil {
		return "", nil, fmt.Errorf("client: poll failed: %w", err)
	}
	if socket == nil {
		return "", nil, fmt.Errorf("client: timed out waiting for reply after %s", c.timeout)
	}

	frames, err := c.sock.RecvMessage()
	if err != nil {
		return "", nil, fmt.Errorf("client: failed to receive reply: %w", err)
	}

	// A DEALER socket sees the frontend's 7-frame ResponseEnvelope wire
	// form with its own leading client-id frame already stripped by the
	// ROUTER on send: empty, worker-id, empty, status, empty, content.
	if len(frames) != 6 {
		return "", nil, fmt.Errorf("client: malformed reply: expected 6 frames, got %d", len(frames))
	}

	return string(frames[3]), frames[5], nil
}
