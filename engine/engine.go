// Package engine wires the identifier pool, the instruction expanders, and
// the flow graph builder into one analysis entry point.
package engine

import (
	"fmt"
	"sync"

	"github.com/tliron/commonlog"

	"github.com/chazu/graft/bytecode"
	"github.com/chazu/graft/expand"
	"github.com/chazu/graft/flow"
	"github.com/chazu/graft/ident"
)

// Engine analyzes method bodies. The pool and expander registry are built
// once at startup and read-only afterwards, so one Engine may serve
// concurrent method-analysis tasks.
type Engine struct {
	pool      *ident.Pool
	expanders *flow.Expanders
	builder   *flow.Builder
	log       commonlog.Logger
}

// New creates an engine with the built-in identifier pool and the standard
// expanders registered.
func New() (*Engine, error) {
	expanders := flow.NewExpanders()
	if err := expanders.Register(expand.NewCompareExpander()); err != nil {
		return nil, err
	}
	return &Engine{
		pool:      ident.NewPool(),
		expanders: expanders,
		builder:   flow.NewBuilder(expanders),
		log:       commonlog.GetLogger("graft.engine"),
	}, nil
}

// Pool returns the identifier pool for configuration-time registration.
func (e *Engine) Pool() *ident.Pool {
	return e.pool
}

// Expanders returns the expander registry for configuration-time
// registration.
func (e *Engine) Expanders() *flow.Expanders {
	return e.expanders
}

// Analyze builds the flow graph for one method body. Fail-fast: on error no
// partial graph is exposed.
func (e *Engine) Analyze(body *bytecode.MethodBody) (*flow.Graph, error) {
	g, err := e.builder.Build(body)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", body.Name, err)
	}
	return g, nil
}

// Result pairs one method body with its graph or its failure. A failed
// method never poisons its siblings.
type Result struct {
	Body  *bytecode.MethodBody
	Graph *flow.Graph
	Err   error
}

// AnalyzeAll analyzes bodies across a bounded worker pool, one method body
// per task. Results are returned in input order.
func (e *Engine) AnalyzeAll(bodies []*bytecode.MethodBody, workers int) []Result {
	if workers < 1 {
		workers = 1
	}
	results := make([]Result, len(bodies))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				g, err := e.Analyze(bodies[i])
				if err != nil {
					e.log.Errorf("skipping %s: %v", bodies[i].Name, err)
				}
				results[i] = Result{Body: bodies[i], Graph: g, Err: err}
			}
		}()
	}
	for i := range bodies {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return results
}
