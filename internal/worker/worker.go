// Package worker implements one renderer process: it connects to the
// broker's backend, announces readiness, serves dispatched requests one at
// a time, heartbeats to a self-watchdog, and exits on STOP or on a missed
// heartbeat.
package worker

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	czmq "github.com/zeromq/goczmq/v4"

	"github.com/leandrosilva/wkpdfcluster/internal/render"
	"github.com/leandrosilva/wkpdfcluster/internal/settings"
	"github.com/leandrosilva/wkpdfcluster/internal/wire"
)

const socketTimeout = 1 * time.Second

// heartbeatMissedExitCode is returned by os.Exit when the watchdog observes
// a missed tick; the render loop is assumed wedged in native code and is
// not given a chance to clean up.
const heartbeatMissedExitCode = 66

// Worker is a single renderer process's connection to the broker backend.
type Worker struct {
	id        string
	endpoint  string
	outputDir string
	timeout   time.Duration

	sock   *czmq.Sock
	poller *czmq.Poller
	renderer *render.Renderer

	stopFlag int32
	seq      uint64

	osExit func(int) // overridable in tests
}

// New constructs a worker bound to the given backend endpoint, with a
// render-wall-clock / heartbeat bound of timeout and artifacts written
// under outputDir. It does not connect until Run is called.
func New(id, endpoint, outputDir string, timeout time.Duration) *Worker {
	return &Worker{
		id:        id,
		endpoint:  endpoint,
		outputDir: outputDir,
		timeout:   timeout,
		osExit:    os.Exit,
	}
}

// Stop requests a graceful shutdown; the main loop observes this at the
// top of its next iteration.
func (w *Worker) Stop() {
	atomic.StoreInt32(&w.stopFlag, 1)
}

func (w *Worker) stopped() bool {
	return atomic.LoadInt32(&w.stopFlag) != 0
}

// Run connects to the broker, announces READY, and serves requests until a
// stop condition is observed, at which point it returns. onReady is
// invoked once readiness has been announced.
func (w *Worker) Run(onReady func()) error {
	logger := log.WithFields(log.Fields{"component": "worker", "worker_id": w.id})

	if err := os.MkdirAll(w.outputDir, 0o755); err != nil {
		return fmt.Errorf("worker: failed to create output directory: %w", err)
	}

	sock, err := czmq.NewDealer(w.endpoint)
	if err != nil {
		return fmt.Errorf("worker: failed to create socket: %w", err)
	}
	sock.SetOption(czmq.SockSetIdentity(w.id))
	w.sock = sock
	defer w.sock.Destroy()

	poller, err := czmq.NewPoller()
	if err != nil {
		return fmt.Errorf("worker: failed to create poller: %w", err)
	}
	if err := poller.Add(w.sock); err != nil {
		return fmt.Errorf("worker: failed to register socket with poller: %w", err)
	}
	w.poller = poller
	defer w.poller.Destroy()

	ticks := make(chan struct{}, 1)
	watchdogDone := make(chan struct{})
	go w.watchdog(ticks, watchdogDone, logger)
	defer close(watchdogDone)

	renderer, err := render.New()
	if err != nil {
		logger.WithError(err).Error("renderer failed to initialize, exiting without announcing ready")
		return err
	}
	w.renderer = renderer

	if err := w.send(wire.EncodeControl(wire.WorkerReady)); err != nil {
		return fmt.Errorf("worker: failed to announce ready: %w", err)
	}
	logger.Info("worker ready")
	if onReady != nil {
		onReady()
	}

	for !w.stopped() {
		select {
		case ticks <- struct{}{}:
		default:
		}

		frames, err := w.recvTimeout(socketTimeout)
		if err != nil {
			continue // socket timeout: retry next iteration
		}
		if frames == nil {
			continue
		}

		if string(frames[0]) == wire.WorkerStop {
			_ = w.send(wire.EncodeControl(wire.WorkerGone))
			break
		}

		dispatch, err := wire.DecodeDispatchInbound([]byte(w.id), frames)
		if err != nil {
			logger.WithError(err).Warn("dropping malformed dispatch envelope")
			continue
		}

		w.handleDispatch(logger, dispatch)
	}

	logger.Info("worker shutting down")
	return nil
}

// watchdog forces the process to exit if it does not see a tick within
// timeout. It never touches the socket or renderer.
func (w *Worker) watchdog(ticks <-chan struct{}, done <-chan struct{}, logger *log.Entry) {
	for {
		select {
		case <-done:
			return
		case <-ticks:
			continue
		case <-time.After(w.timeout):
			logger.Error("heartbeat missed, forcing process exit")
			w.osExit(heartbeatMissedExitCode)
			return
		}
	}
}

func (w *Worker) handleDispatch(logger *log.Entry, dispatch wire.DispatchEnvelope) {
	clientLogger := logger.WithField("client_id", string(dispatch.ClientID))

	req, err := render.Parse(dispatch.Body)
	if err != nil {
		clientLogger.WithError(err).Debug("rejecting malformed request")
		w.reply(dispatch.ClientID, wire.StatusBadRequest, []byte(err.Error()))
		return
	}

	global, err := settings.CoerceAll(settings.ScopeGlobal, settings.GlobalSettings, req.Global)
	if err != nil {
		w.reply(dispatch.ClientID, wire.StatusBadRequest, []byte(err.Error()))
		return
	}
	object, err := settings.CoerceAll(settings.ScopeObject, settings.ObjectSettings, req.Object)
	if err != nil {
		w.reply(dispatch.ClientID, wire.StatusBadRequest, []byte(err.Error()))
		return
	}

	content, err := w.renderer.Render(req.URL, global, object)
	if err != nil {
		renderErr, ok := err.(*render.Error)
		if ok && renderErr.Kind == render.KindWarn {
			clientLogger.WithError(err).Warn("render warning, exiting after reply")
			w.reply(dispatch.ClientID, wire.StatusBadGateway, []byte(renderErr.Message))
			time.Sleep(50 * time.Millisecond) // let the reply frame leave the socket
			w.osExit(1)
			return
		}
		clientLogger.WithError(err).Error("render failed, exiting after reply")
		w.reply(dispatch.ClientID, wire.StatusBadGateway, []byte(err.Error()))
		time.Sleep(50 * time.Millisecond)
		w.osExit(1)
		return
	}

	filename, err := w.writeArtifact(content)
	if err != nil {
		clientLogger.WithError(err).Error("failed to write rendered artifact")
		w.reply(dispatch.ClientID, wire.StatusBadGateway, []byte(err.Error()))
		return
	}

	clientLogger.WithField("file", filename).Debug("render succeeded")
	w.reply(dispatch.ClientID, wire.StatusOK, []byte(filename))
}

func (w *Worker) writeArtifact(content []byte) (string, error) {
	seq := atomic.AddUint64(&w.seq, 1)
	uid := fmt.Sprintf("%d-%d", time.Now().UnixMilli(), seq)
	filename := fmt.Sprintf("req-%s-%s.pdf", w.id, uid)
	path := fmt.Sprintf("%s/%s", w.outputDir, filename)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", err
	}
	return filename, nil
}

func (w *Worker) reply(clientID []byte, status string, content []byte) {
	_ = w.send(wire.EncodeReply(clientID, status, content))
}

func (w *Worker) send(frames [][]byte) error {
	return w.sock.SendMessage(frames)
}

// recvTimeout blocks up to d for a single incoming message, returning
// (nil, non-nil) on timeout and (frames, nil) otherwise.
func (w *Worker) recvTimeout(d time.Duration) ([][]byte, error) {
	socket, err := w.poller.Wait(int(d.Milliseconds()))
	if err != nil {
		return nil, err
	}
	if socket == nil {
		return nil, fmt.Errorf("worker: recv timeout")
	}
	return socket.RecvMessage()
}
