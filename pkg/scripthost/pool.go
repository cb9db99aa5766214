// Package scripthost embeds the goja JavaScript interpreter (C6): a
// process-wide runtime pool, a scripted-node adapter satisfying the
// noderegistry.Node contract, and the marshaling layer between
// streamtype.RuntimeData and goja values. Grounded on
// api/pkg/agent/skill/calculator_skill.go's "new goja.Runtime, RunString,
// Export the result" shape, generalized from one-shot expression
// evaluation to a long-lived, reusable runtime pool.
package scripthost

import (
	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/process"
	"github.com/dop251/goja_nodejs/require"
	"github.com/helixml/corepipe/pkg/corepipeerr"
)

// Pool hands out goja runtimes. A goja.Runtime is not safe for concurrent
// use, so each runtime is held by one caller at a time between Acquire and
// Release; NewPool(size) builds size runtimes and the caller picks the
// size (NewPool(1) serializes every scripted node on one runtime).
type Pool struct {
	runtimes chan *goja.Runtime
}

// NewPool builds size independent runtimes, each with require/console/
// process shims enabled via goja_nodejs so scripted node modules can
// require() each other like a real Node-ish host.
func NewPool(size int) (*Pool, error) {
	if size <= 0 {
		return nil, corepipeerr.New(corepipeerr.KindValidation, "scripthost pool size must be positive")
	}
	p := &Pool{runtimes: make(chan *goja.Runtime, size)}
	for i := 0; i < size; i++ {
		p.runtimes <- newHostRuntime()
	}
	return p, nil
}

func newHostRuntime() *goja.Runtime {
	rt := goja.New()
	registry := require.NewRegistry()
	registry.Enable(rt)
	console.Enable(rt)
	process.Enable(rt)
	return rt
}

// Acquire blocks until a runtime is available.
func (p *Pool) Acquire() *goja.Runtime {
	return <-p.runtimes
}

// Release returns a runtime to the pool.
func (p *Pool) Release(rt *goja.Runtime) {
	p.runtimes <- rt
}
