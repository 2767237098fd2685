// Package broker implements the load-balancing event loop and the
// supervisor that owns the worker fleet's process lifecycle.
package broker

import (
	"fmt"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	czmq "github.com/zeromq/goczmq/v4"

	"github.com/leandrosilva/wkpdfcluster/internal/status"
	"github.com/leandrosilva/wkpdfcluster/internal/wire"
)

const pollTimeout = 1 * time.Second

// Config carries everything the broker needs to bind its sockets and
// supervise its worker fleet.
type Config struct {
	FrontendEndpoint string
	BackendEndpoint  string
	WorkerBinPath    string
	OutputDir        string
	Instances        int
	Timeout          time.Duration
	GraceWindow      time.Duration
}

// Broker owns the two ROUTER sockets, the in-memory ready queue, and the
// supervisor. Its sockets are never shared across goroutines — only the
// event loop goroutine touches them.
type Broker struct {
	cfg Config

	frontend *czmq.Sock
	backend  *czmq.Sock

	pollerBackendOnly *czmq.Poller
	pollerBoth        *czmq.Poller

	available readyQueue
	sup       *supervisor
	Status    status.Tracker

	stopFlag int32
}

// New constructs a broker from cfg. Sockets are not bound until Run.
func New(cfg Config) *Broker {
	if cfg.GraceWindow == 0 {
		cfg.GraceWindow = 5 * time.Second
	}
	return &Broker{cfg: cfg}
}

// Stop requests a graceful shutdown; the event loop exits its poll on the
// next iteration and the supervisor begins its phased shutdown.
func (b *Broker) Stop() {
	atomic.StoreInt32(&b.stopFlag, 1)
}

func (b *Broker) stopped() bool {
	return atomic.LoadInt32(&b.stopFlag) != 0
}

// Run binds both sockets, starts the supervisor, and runs the event loop
// until Stop is called, then performs the supervisor's phased shutdown
// before returning.
func (b *Broker) Run(onReady func(workerCount int)) error {
	b.Status.SetStatus("starting")

	var err error
	if b.frontend, err = czmq.NewRouter(b.cfg.FrontendEndpoint); err != nil {
		return fmt.Errorf("broker: failed to bind frontend: %w", err)
	}
	defer b.frontend.Destroy()

	if b.backend, err = czmq.NewRouter(b.cfg.BackendEndpoint); err != nil {
		return fmt.Errorf("broker: failed to bind backend: %w", err)
	}
	defer b.backend.Destroy()

	if b.pollerBackendOnly, err = czmq.NewPoller(); err != nil {
		return fmt.Errorf("broker: failed to create backend poller: %w", err)
	}
	defer b.pollerBackendOnly.Destroy()
	if err := b.pollerBackendOnly.Add(b.backend); err != nil {
		return fmt.Errorf("broker: failed to register backend socket: %w", err)
	}

	if b.pollerBoth, err = czmq.NewPoller(); err != nil {
		return fmt.Errorf("broker: failed to create combined poller: %w", err)
	}
	defer b.pollerBoth.Destroy()
	if err := b.pollerBoth.Add(b.backend); err != nil {
		return fmt.Errorf("broker: failed to register backend socket: %w", err)
	}
	if err := b.pollerBoth.Add(b.frontend); err != nil {
		return fmt.Errorf("broker: failed to register frontend socket: %w", err)
	}

	b.sup = newSupervisor(b.cfg.WorkerBinPath, b.cfg.OutputDir, b.cfg.Timeout, b.cfg.Instances, b.cfg.GraceWindow)
	if err := b.sup.start(); err != nil {
		b.Status.RecordError(err)
		return fmt.Errorf("broker: failed to start worker fleet: %w", err)
	}
	b.Status.SetStatus("running")
	if onReady != nil {
		onReady(b.sup.runningCount())
	}

	b.eventLoop()

	b.Status.SetStatus("shutting-down")
	b.sup.shutdown()
	b.Status.SetStatus("stopped")
	return nil
}

// eventLoop is the central piece of load balancing: it polls only the
// backend while no worker is available (the backpressure lever — clients
// are not admitted until a worker is free), and both sockets otherwise.
func (b *Broker) eventLoop() {
	logger := log.WithField("component", "broker")

	for !b.stopped() {
		var poller *czmq.Poller
		if b.available.len() == 0 {
			poller = b.pollerBackendOnly
		} else {
			poller = b.pollerBoth
		}

		socket, err := poller.Wait(int(pollTimeout.Milliseconds()))
		if err != nil {
			logger.WithError(err).Error("poll failed")
			continue
		}
		if socket == nil {
			continue // timeout, re-check stop flag and ready-queue state
		}

		switch socket {
		case b.backend:
			b.handleBackend(logger)
		case b.frontend:
			b.handleFrontend(logger)
		}
	}
}

func (b *Broker) handleBackend(logger *log.Entry) {
	frames, err := b.backend.RecvMessage()
	if err != nil {
		logger.WithError(err).Error("failed to receive on backend")
		return
	}
	if len(frames) < 2 {
		return
	}

	workerID := frames[0]
	if len(frames[1]) != 0 {
		logger.Warn("dropping malformed worker envelope: missing delimiter")
		return
	}

	reply, err := wire.DecodeBackendFrames(frames[2:])
	if err != nil {
		logger.WithError(err).Warn("dropping malformed worker envelope")
		return
	}

	if reply.IsControl() {
		switch reply.Control {
		case wire.WorkerReady:
			logger.WithField("worker_id", string(workerID)).Debug("worker ready")
			b.available.pushFront(workerID)
		case wire.WorkerGone:
			logger.WithField("worker_id", string(workerID)).Info("worker gone")
			b.available.remove(workerID)
		}
		return
	}

	b.available.pushFront(workerID)

	response := wire.ResponseEnvelope{
		ClientID: reply.ClientID,
		WorkerID: workerID,
		Status:   reply.Status,
		Content:  reply.Content,
	}
	if err := b.frontend.SendMessage(response.Encode()); err != nil {
		logger.WithError(err).Error("failed to forward response to client")
	}
}

func (b *Broker) handleFrontend(logger *log.Entry) {
	frames, err := b.frontend.RecvMessage()
	if err != nil {
		logger.WithError(err).Error("failed to receive on frontend")
		return
	}

	req, err := wire.DecodeRequestEnvelope(frames)
	if err != nil {
		logger.WithError(err).Warn("dropping malformed client envelope")
		return
	}

	if b.available.len() == 0 {
		// Poll invariant guarantees this does not happen in practice: the
		// frontend is not polled while the ready queue is empty.
		logger.Warn("frontend readable with no available workers")
		return
	}
	workerID := b.available.popBack()

	dispatch := wire.DispatchEnvelope{WorkerID: workerID, ClientID: req.ClientID, Body: req.Body}
	if err := b.backend.SendMessage(dispatch.Encode()); err != nil {
		logger.WithError(err).Error("failed to dispatch request to worker")
	}
}
