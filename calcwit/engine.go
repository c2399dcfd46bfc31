package calcwit

import (
	"sync"

	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/logger"
	"github.com/rs/zerolog"
)

// RunFn is a template's run entry point; cmp is the engine index of the
// instance to execute.
type RunFn func(e *Engine, cmp int) error

// IODef is one I/O descriptor: Offset in elements from the owning frame's
// base, Size in elements, Lengths the declared extents of all dimensions but
// the outermost, BusID the nested bus id for bus-valued fields (-1 for
// scalars).
type IODef struct {
	Offset  int
	Size    int
	Lengths []int
	BusID   int
}

// Engine owns the runtime state the generated program addresses: the shared
// signal region, the variable frame, instance records, the metadata tables
// of the mapped addressing mode, the run dispatch tables, and the global
// concurrency limit.
type Engine struct {
	Vars       []constraint.Element
	Signals    []constraint.Element
	Constants  []constraint.Element
	Components []*Component

	// IOTables maps template id and signal code to a descriptor;
	// BusTables maps bus id and field number.
	IOTables  [][]IODef
	BusTables [][]IODef

	// run dispatch: by template name for statically known destinations,
	// by template id for the mapped/indirect case.
	RunName    map[string]RunFn
	RunNamePar map[string]RunFn
	RunSeq     map[int]RunFn
	RunPar     map[int]RunFn

	maxThread int
	numThread int
	peak      int
	ntMu      sync.Mutex
	ntCond    *sync.Cond
	wg        sync.WaitGroup

	log zerolog.Logger
}

func NewEngine(maxThread int) *Engine {
	e := &Engine{
		RunName:    map[string]RunFn{},
		RunNamePar: map[string]RunFn{},
		RunSeq:     map[int]RunFn{},
		RunPar:     map[int]RunFn{},
		maxThread:  maxThread,
		log:        logger.Logger(),
	}
	e.ntCond = sync.NewCond(&e.ntMu)
	return e
}

// Spawn dispatches fn onto its own task, blocking first until the global
// concurrency limit admits one more, then returning without waiting for the
// task to finish. Task failures cannot propagate to a caller anymore; they
// are reported through the log.
func (e *Engine) Spawn(fn RunFn, cmp int) {
	e.ntMu.Lock()
	for e.numThread >= e.maxThread {
		e.ntCond.Wait()
	}
	e.numThread++
	if e.numThread > e.peak {
		e.peak = e.numThread
	}
	e.ntMu.Unlock()

	e.wg.Add(1)
	go func() {
		defer func() {
			e.ntMu.Lock()
			e.numThread--
			e.ntMu.Unlock()
			e.ntCond.Broadcast()
			e.wg.Done()
		}()
		if err := fn(e, cmp); err != nil {
			e.log.Error().Int("component", cmp).Err(err).Msg("parallel component run failed")
		}
	}()
}

// Join waits for every spawned task to finish.
func (e *Engine) Join() {
	e.wg.Wait()
}

// PeakThreads reports the highest concurrent task count observed.
func (e *Engine) PeakThreads() int {
	e.ntMu.Lock()
	defer e.ntMu.Unlock()
	return e.peak
}
