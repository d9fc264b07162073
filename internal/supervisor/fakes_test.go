package supervisor

import (
	"context"
	"errors"
	"os"
	"sync"
	"syscall"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"github.com/qs3c/apply_go_server/internal/pkg/heartbeat"
	"github.com/qs3c/apply_go_server/internal/repository"
	"github.com/qs3c/apply_go_server/internal/testutil"
)

type fakeProcess struct {
	pid        int
	ignoreTerm bool

	mu      sync.Mutex
	signals []os.Signal
	killed  bool

	once sync.Once
	exit chan struct{}
	err  error
}

func newFakeProcess(pid int, ignoreTerm bool) *fakeProcess {
	return &fakeProcess{pid: pid, ignoreTerm: ignoreTerm, exit: make(chan struct{})}
}

func (p *fakeProcess) PID() int { return p.pid }

func (p *fakeProcess) Signal(sig os.Signal) error {
	p.mu.Lock()
	p.signals = append(p.signals, sig)
	p.mu.Unlock()
	if sig == syscall.SIGTERM && !p.ignoreTerm {
		p.finish(nil)
	}
	return nil
}

func (p *fakeProcess) Kill() error {
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()
	p.finish(errors.New("signal: killed"))
	return nil
}

func (p *fakeProcess) Wait() error {
	<-p.exit
	return p.err
}

// crash 模拟进程意外退出
func (p *fakeProcess) crash(err error) {
	p.finish(err)
}

func (p *fakeProcess) finish(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.exit)
	})
}

func (p *fakeProcess) gotSignals() []os.Signal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]os.Signal(nil), p.signals...)
}

func (p *fakeProcess) wasKilled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}

type fakeSpawner struct {
	ignoreTerm bool
	failAt     int // 第几个启动失败，0 表示不失败

	mu    sync.Mutex
	specs []WorkerSpec
	procs []*fakeProcess
}

func (s *fakeSpawner) Spawn(_ context.Context, spec WorkerSpec) (Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failAt > 0 && len(s.specs)+1 == s.failAt {
		return nil, errors.New("exec: worker binary not found")
	}
	p := newFakeProcess(1000+len(s.procs), s.ignoreTerm)
	s.specs = append(s.specs, spec)
	s.procs = append(s.procs, p)
	return p, nil
}

func (s *fakeSpawner) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.procs)
}

type fixture struct {
	db      *gorm.DB
	mr      *miniredis.Miniredis
	client  *redis.Client
	appRepo *repository.ApplicationRepository
	logRepo *repository.LogRepository
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return &fixture{
		db:      db,
		mr:      mr,
		client:  client,
		appRepo: repository.NewApplicationRepository(db),
		logRepo: repository.NewLogRepository(db),
	}
}

func (f *fixture) reconciler(policy string) *Reconciler {
	return NewReconciler(f.appRepo, f.logRepo, heartbeat.NewChecker(f.client), nil, policy)
}
