package executor

import (
	"golang.org/x/sync/errgroup"

	"github.com/thundergraph/gateway/plan"
)

// scheduler drives plan.Partitions to completion respecting their data
// dependencies (Parent) and mutation ordering (MutationAfter), mirroring
// the teacher's executor2.go Queue: each partition gets a "done" gate
// that closes once it finishes, and dependents block on their
// predecessors' gates before starting rather than polling a shared
// pending counter -- the same end result (a partition runs only once
// every blocker has finished) reached with one channel per node instead
// of one global counter, which keeps a failed/cancelled partition from
// ever blocking siblings that do not depend on it.
type scheduler struct {
	gates map[*plan.Partition]chan struct{}
}

func newScheduler(all []*plan.Partition) *scheduler {
	s := &scheduler{gates: make(map[*plan.Partition]chan struct{}, len(all))}
	for _, p := range all {
		s.gates[p] = make(chan struct{})
	}
	return s
}

// run launches one goroutine per partition via an errgroup.Group; each
// waits on its Parent's and MutationAfter's gates (if any) before
// invoking work, then closes its own gate so dependents unblock. run
// blocks until every partition's goroutine has returned. work never
// itself returns an error -- dispatch failures are recorded into the
// shared dispatcher instead (see executor.go) -- so every errgroup.Go
// call always returns nil and g.Wait() only ever reports on goroutine
// completion, not dispatch outcome.
func (s *scheduler) run(all []*plan.Partition, work func(p *plan.Partition)) {
	var g errgroup.Group
	for _, p := range all {
		p := p
		g.Go(func() error {
			if p.Parent != nil {
				<-s.gates[p.Parent]
			}
			if p.MutationAfter != nil {
				<-s.gates[p.MutationAfter]
			}
			work(p)
			close(s.gates[p])
			return nil
		})
	}
	_ = g.Wait()
}
