package supervisor

import (
	"context"
	"io"
	"os"
	"os/exec"

	"github.com/rotisserie/eris"
)

// WorkerSpec 启动一个 worker 进程所需的参数
type WorkerSpec struct {
	Name     string
	Instance string
}

// Process 已启动的 worker 进程
type Process interface {
	PID() int
	Signal(sig os.Signal) error
	Kill() error
	// Wait 阻塞直到进程退出，只能调用一次
	Wait() error
}

type Spawner interface {
	Spawn(ctx context.Context, spec WorkerSpec) (Process, error)
}

// ExecSpawner 以子进程方式运行 cmd/worker
type ExecSpawner struct {
	Binary     string
	Args       []string
	ConfigPath string
	Stdout     io.Writer
	Stderr     io.Writer
}

func (s *ExecSpawner) Spawn(_ context.Context, spec WorkerSpec) (Process, error) {
	args := append([]string{}, s.Args...)
	args = append(args, "--name", spec.Name, "--instance", spec.Instance)
	if s.ConfigPath != "" {
		args = append(args, "--config", s.ConfigPath)
	}

	// 子进程不跟随请求 ctx，由 Stop 显式结束
	cmd := exec.Command(s.Binary, args...)
	cmd.Stdout = s.Stdout
	cmd.Stderr = s.Stderr
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Start(); err != nil {
		return nil, eris.Wrapf(err, "supervisor: start %s", spec.Name)
	}
	return &execProcess{cmd: cmd}, nil
}

type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) PID() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Signal(sig os.Signal) error {
	return p.cmd.Process.Signal(sig)
}

func (p *execProcess) Kill() error {
	return p.cmd.Process.Kill()
}

func (p *execProcess) Wait() error {
	return p.cmd.Wait()
}
