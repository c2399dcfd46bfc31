package calcwit

import "sync"

// Component is one circuit instance's runtime record. The fields mirror
// what generated code reads and writes: the signal-frame base, the template
// id for indirect dispatch, the pending-input counter the trigger protocol
// decrements, and the per-output ready flags used under parallel execution.
type Component struct {
	TemplateID  int
	SignalStart int
	// InputCounter is the number of input elements still unwritten; only
	// the owning parent's thread ever touches it.
	InputCounter int
	// Parallel is the runtime flag consulted when the IR could not decide
	// statically.
	Parallel bool
	// SubCmps lists nested instances by engine component index.
	SubCmps []int

	outputs []outputFlag
}

// outputFlag guards one signal element's readiness. Only that element's
// single writer ever flips it; readers block on the condition.
type outputFlag struct {
	mu   sync.Mutex
	cond *sync.Cond
	set  bool
}

// NewComponent builds a record whose frame holds frameSize elements.
func NewComponent(templateID, signalStart, frameSize, inputCounter int) *Component {
	c := &Component{
		TemplateID:   templateID,
		SignalStart:  signalStart,
		InputCounter: inputCounter,
		outputs:      make([]outputFlag, frameSize),
	}
	for i := range c.outputs {
		c.outputs[i].cond = sync.NewCond(&c.outputs[i].mu)
	}
	return c
}

// MarkOutputReady publishes element sig of the frame. The caller must have
// finished the full value write first: the flag flip happens-before the
// wake, so a reader observing it sees the complete value.
func (c *Component) MarkOutputReady(sig int) {
	o := &c.outputs[sig]
	o.mu.Lock()
	o.set = true
	o.mu.Unlock()
	o.cond.Broadcast()
}

// WaitOutput blocks until element sig has been published.
func (c *Component) WaitOutput(sig int) {
	o := &c.outputs[sig]
	o.mu.Lock()
	for !o.set {
		o.cond.Wait()
	}
	o.mu.Unlock()
}

// OutputReady reports the flag without blocking.
func (c *Component) OutputReady(sig int) bool {
	o := &c.outputs[sig]
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.set
}
