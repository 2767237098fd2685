package broker

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/shirou/gopsutil/v3/process"
)

const livenessScanInterval = 5 * time.Second

// supervisor owns the worker fleet's process lifecycle: spawning the
// configured number of instances, scanning the OS process table to detect
// and replace dead workers, and the phased shutdown (grace window then
// SIGKILL).
type supervisor struct {
	workerBinPath string
	outputDir     string
	timeout       time.Duration
	instances     int
	graceWindow   time.Duration

	mu      sync.RWMutex
	running map[int32]*exec.Cmd

	shuttingDown int32
	stopScan     chan struct{}
}

func newSupervisor(workerBinPath, outputDir string, timeout time.Duration, instances int, graceWindow time.Duration) *supervisor {
	return &supervisor{
		workerBinPath: workerBinPath,
		outputDir:     outputDir,
		timeout:       timeout,
		instances:     instances,
		graceWindow:   graceWindow,
		running:       make(map[int32]*exec.Cmd),
		stopScan:      make(chan struct{}),
	}
}

// start spawns the configured number of worker instances and begins the
// liveness scanner loop in the background.
func (s *supervisor) start() error {
	for i := 0; i < s.instances; i++ {
		if err := s.spawnOne(); err != nil {
			return err
		}
	}
	go s.scanLoop()
	return nil
}

func (s *supervisor) spawnOne() error {
	cmd := exec.Command(s.workerBinPath, "start", "-o", s.outputDir, "-t", strconv.Itoa(int(s.timeout/time.Second)))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		log.WithError(err).WithField("component", "supervisor").Error("failed to spawn worker")
		return err
	}

	s.mu.Lock()
	s.running[int32(cmd.Process.Pid)] = cmd
	s.mu.Unlock()

	log.WithFields(log.Fields{"component": "supervisor", "pid": cmd.Process.Pid}).Info("spawned worker")

	go func() {
		_ = cmd.Wait() // reap to avoid zombies; liveness detection happens via the scanner, not this Wait
	}()

	return nil
}

// scanLoop periodically diffs the OS process table against the running
// set, replacing any worker that has disappeared.
func (s *supervisor) scanLoop() {
	ticker := time.NewTicker(livenessScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopScan:
			return
		case <-ticker.C:
			s.scanOnce()
		}
	}
}

func (s *supervisor) scanOnce() {
	ownPID := int32(os.Getpid())
	binName := filepath.Base(s.workerBinPath)

	alive := make(map[int32]bool)
	procs, err := process.Processes()
	if err != nil {
		log.WithError(err).WithField("component", "supervisor").Warn("failed to enumerate processes")
		return
	}
	for _, proc := range procs {
		ppid, err := proc.Ppid()
		if err != nil || ppid != ownPID {
			continue
		}
		name, err := proc.Name()
		if err != nil || name != binName {
			continue
		}
		alive[proc.Pid] = true
	}

	s.mu.Lock()
	var dead []int32
	for pid := range s.running {
		if !alive[pid] {
			dead = append(dead, pid)
		}
	}
	for _, pid := range dead {
		delete(s.running, pid)
	}
	s.mu.Unlock()

	if len(dead) == 0 {
		return
	}
	log.WithFields(log.Fields{"component": "supervisor", "dead_pids": dead}).Warn("worker(s) disappeared, replacing")

	if atomic.LoadInt32(&s.shuttingDown) != 0 {
		return
	}
	for range dead {
		_ = s.spawnOne()
	}
}

// runningCount returns the number of workers this supervisor currently
// believes are alive.
func (s *supervisor) runningCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.running)
}

// shutdown sets the shutting-down flag, waits the grace window for
// workers to exit on their own, then SIGKILLs any still-running children.
// It stops the liveness scanner first so a replacement is never spawned
// mid-shutdown.
func (s *supervisor) shutdown() {
	atomic.StoreInt32(&s.shuttingDown, 1)
	close(s.stopScan)

	time.Sleep(s.graceWindow)

	s.mu.Lock()
	defer s.mu.Unlock()
	for pid, cmd := range s.running {
		if cmd.Process == nil {
			continue
		}
		log.WithFields(log.Fields{"component": "supervisor", "pid": pid}).Warn("force-killing surviving worker")
		_ = cmd.Process.Kill()
	}
}
