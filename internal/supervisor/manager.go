package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/qs3c/apply_go_server/internal/model/dto"
	"github.com/qs3c/apply_go_server/internal/pkg/pubsub"
)

// ErrAlreadyActive 其他实例持有单例锁
var ErrAlreadyActive = errors.New("supervisor: another task manager is active")

// 任务管理器状态
const (
	StatusUninitialized = "uninitialized"
	StatusRunning       = "running"
	StatusStopped       = "stopped"
	StatusCrashed       = "crashed"
)

type Options struct {
	WorkerCount int
	StopTimeout time.Duration
}

type workerHandle struct {
	name     string
	instance string
	proc     Process
	done     chan struct{}
	alive    atomic.Bool
	stopping atomic.Bool
}

// Manager 管理 worker 进程的生命周期
type Manager struct {
	opts       Options
	spawner    Spawner
	lock       Locker
	reconciler *Reconciler
	publisher  *pubsub.Publisher

	mu         sync.Mutex
	state      string
	workers    []*workerHandle
	lockLost   atomic.Bool
	stopKeeper context.CancelFunc
}

func NewManager(opts Options, spawner Spawner, lock Locker, reconciler *Reconciler, publisher *pubsub.Publisher) *Manager {
	if opts.WorkerCount <= 0 {
		opts.WorkerCount = 4
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = 10 * time.Second
	}
	return &Manager{
		opts:       opts,
		spawner:    spawner,
		lock:       lock,
		reconciler: reconciler,
		publisher:  publisher,
		state:      StatusUninitialized,
	}
}

// Start 已在运行时直接返回
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StatusRunning {
		return nil
	}

	if m.lock != nil {
		ok, err := m.lock.Acquire(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadyActive
		}
	}
	m.lockLost.Store(false)

	// 上次遗留的孤儿先处理，此时还没有自己的 worker
	if m.reconciler != nil {
		if _, err := m.reconciler.Reconcile(ctx, nil); err != nil {
			zap.L().Error("startup reconciliation failed", zap.Error(err))
		}
	}

	workers := make([]*workerHandle, 0, m.opts.WorkerCount)
	for i := 0; i < m.opts.WorkerCount; i++ {
		spec := WorkerSpec{
			Name:     fmt.Sprintf("Worker-%d", i+1),
			Instance: uuid.NewString(),
		}
		proc, err := m.spawner.Spawn(ctx, spec)
		if err != nil {
			for _, h := range workers {
				h.stopping.Store(true)
				_ = h.proc.Kill()
			}
			m.releaseLock()
			return err
		}

		h := &workerHandle{name: spec.Name, instance: spec.Instance, proc: proc, done: make(chan struct{})}
		h.alive.Store(true)
		workers = append(workers, h)
		go m.watch(h)

		zap.L().Info("worker spawned", zap.String("worker", spec.Name), zap.String("instance", spec.Instance), zap.Int("pid", proc.PID()))
	}
	m.workers = workers

	if m.lock != nil {
		keepCtx, cancel := context.WithCancel(context.Background())
		m.stopKeeper = cancel
		go m.lock.Keep(keepCtx, func() { m.lockLost.Store(true) })
	}

	m.state = StatusRunning
	m.publishState(ctx)
	zap.L().Info("task manager started", zap.Int("workers", len(workers)))
	return nil
}

// watch 等待进程退出，非 Stop 引起的退出不重启
func (m *Manager) watch(h *workerHandle) {
	err := h.proc.Wait()
	h.alive.Store(false)
	close(h.done)

	if h.stopping.Load() {
		return
	}

	zap.L().Error("worker exited unexpectedly",
		zap.String("worker", h.name),
		zap.String("instance", h.instance),
		zap.Error(err),
	)
	if m.reconciler == nil {
		return
	}

	msg := "worker exited unexpectedly"
	if err != nil {
		msg += ": " + err.Error()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := m.reconciler.FailWorker(ctx, h.instance, msg); err != nil {
		zap.L().Error("fail crashed worker items failed", zap.String("worker", h.name), zap.Error(err))
	}
}

// Stop force 为 true 时直接结束进程，否则先 SIGTERM 等待当前申请完成
func (m *Manager) Stop(ctx context.Context, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StatusRunning {
		return nil
	}

	for _, h := range m.workers {
		h.stopping.Store(true)
	}

	var killedMu sync.Mutex
	var killed []*workerHandle
	kill := func(h *workerHandle) {
		if err := h.proc.Kill(); err != nil {
			zap.L().Debug("kill worker failed", zap.String("worker", h.name), zap.Error(err))
		}
		<-h.done
		killedMu.Lock()
		killed = append(killed, h)
		killedMu.Unlock()
	}

	timer := time.NewTimer(m.opts.StopTimeout)
	defer timer.Stop()
	deadline := timer.C
	if force {
		closed := make(chan time.Time)
		close(closed)
		deadline = closed
	}

	g := new(errgroup.Group)
	for _, h := range m.workers {
		if !h.alive.Load() {
			continue
		}
		if !force {
			if err := h.proc.Signal(syscall.SIGTERM); err != nil {
				zap.L().Debug("signal worker failed", zap.String("worker", h.name), zap.Error(err))
			}
		}
		g.Go(func() error {
			select {
			case <-h.done:
			case <-deadline:
				zap.L().Warn("worker did not exit in time, killing", zap.String("worker", h.name))
				kill(h)
			case <-ctx.Done():
				kill(h)
			}
			return nil
		})
	}
	_ = g.Wait()

	if m.reconciler != nil {
		for _, h := range killed {
			if _, err := m.reconciler.ReconcileWorker(context.WithoutCancel(ctx), h.instance); err != nil {
				zap.L().Error("reconcile killed worker failed", zap.String("worker", h.name), zap.Error(err))
			}
		}
	}

	if m.stopKeeper != nil {
		m.stopKeeper()
		m.stopKeeper = nil
	}
	m.releaseLock()

	m.state = StatusStopped
	m.publishState(ctx)
	zap.L().Info("task manager stopped", zap.Bool("force", force), zap.Int("killed", len(killed)))
	return nil
}

// Status 当前快照，运行中但 worker 全部退出或锁丢失视为 crashed
func (m *Manager) Status() *dto.ManagerStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := &dto.ManagerStatus{
		ManagerStatus: m.state,
		ManagerPID:    os.Getpid(),
		WorkerCount:   m.opts.WorkerCount,
		Workers:       make([]dto.WorkerDescriptor, 0, len(m.workers)),
	}

	alive := 0
	for _, h := range m.workers {
		isAlive := h.alive.Load()
		if isAlive {
			alive++
		}
		status.Workers = append(status.Workers, dto.WorkerDescriptor{
			PID:     h.proc.PID(),
			Name:    h.name,
			IsAlive: isAlive,
		})
	}

	if m.state == StatusRunning && (m.lockLost.Load() || (len(m.workers) > 0 && alive == 0)) {
		status.ManagerStatus = StatusCrashed
	}
	return status
}

// Reconcile 周期性对账，自己存活的 worker 不受影响
func (m *Manager) Reconcile(ctx context.Context) (*ReconcileResult, error) {
	if m.reconciler == nil {
		return &ReconcileResult{}, nil
	}
	return m.reconciler.Reconcile(ctx, m.isLiveChild)
}

func (m *Manager) isLiveChild(instance string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, h := range m.workers {
		if h.instance == instance && h.alive.Load() {
			return true
		}
	}
	return false
}

func (m *Manager) releaseLock() {
	if m.lock == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.lock.Release(ctx); err != nil {
		zap.L().Warn("release supervisor lock failed", zap.Error(err))
	}
}

func (m *Manager) publishState(ctx context.Context) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.Publish(ctx, &pubsub.Event{Type: pubsub.EventWorker, Status: m.state}); err != nil {
		zap.L().Debug("publish manager state failed", zap.Error(err))
	}
}
