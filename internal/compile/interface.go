package compile

import (
	"context"

	"github.com/mattjoyce/forgehand/internal/launch"
	"github.com/mattjoyce/forgehand/internal/pool"
	"github.com/mattjoyce/forgehand/internal/protocol"
)

//go:generate mockgen -destination=mocks/mock_executor.go -package=mocks github.com/mattjoyce/forgehand/internal/compile WorkerExecutor,WorkerHandle

// WorkerHandle is an acquired worker, exclusively owned by one invocation
// until it is released.
type WorkerHandle interface {
	ID() string
	Spec() launch.Spec
}

// WorkerExecutor is the narrow worker-pool contract the compiler depends on.
// Depending on this instead of the pool implementation keeps the dispatch
// core testable independently of real worker processes.
type WorkerExecutor interface {
	AcquireOrStart(ctx context.Context, spec launch.Spec) (WorkerHandle, error)
	Send(ctx context.Context, h WorkerHandle, env *protocol.Envelope) (*protocol.Response, error)
	Release(h WorkerHandle)
}

// poolExecutor adapts *pool.Pool to the WorkerExecutor interface.
type poolExecutor struct {
	p *pool.Pool
}

// PoolExecutor wraps a worker pool as a WorkerExecutor.
func PoolExecutor(p *pool.Pool) WorkerExecutor {
	return poolExecutor{p: p}
}

func (e poolExecutor) AcquireOrStart(ctx context.Context, spec launch.Spec) (WorkerHandle, error) {
	w, err := e.p.AcquireOrStart(ctx, spec)
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (e poolExecutor) Send(ctx context.Context, h WorkerHandle, env *protocol.Envelope) (*protocol.Response, error) {
	return e.p.Send(ctx, h.(*pool.Worker), env)
}

func (e poolExecutor) Release(h WorkerHandle) {
	e.p.Release(h.(*pool.Worker))
}
