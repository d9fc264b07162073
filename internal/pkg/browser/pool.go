package browser

import (
	"sync"

	"github.com/qs3c/apply_go_server/internal/automation"
)

// Pool 首次使用时启动浏览器，启动失败时下次再试
type Pool struct {
	opts     Options
	launch   func(Options) (*Launcher, error)
	mu       sync.Mutex
	launcher *Launcher
}

func NewPool(opts Options) *Pool {
	return &Pool{opts: opts, launch: NewLauncher}
}

func (p *Pool) NewSession() (automation.Driver, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.launcher == nil {
		l, err := p.launch(p.opts)
		if err != nil {
			return nil, err
		}
		p.launcher = l
	}

	s, err := p.launcher.NewSession()
	if err != nil {
		// 浏览器可能已崩溃，下次重新启动
		_ = p.launcher.Close()
		p.launcher = nil
		return nil, err
	}
	return s, nil
}

func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.launcher == nil {
		return nil
	}
	err := p.launcher.Close()
	p.launcher = nil
	return err
}
