package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/signalsfoundry/sensornet-simulator/internal/logging"
	"github.com/signalsfoundry/sensornet-simulator/model"
	"github.com/signalsfoundry/sensornet-simulator/timectrl"
)

// ErrTaskBound is returned when Execute is called on a task already bound to
// a node. The binding is set-once.
var ErrTaskBound = errors.New("task already bound to a node")

// Task owns one behaviour chain, a set of named ports, and a free-form
// property bag segments read their configuration from. A task is bound to
// exactly one node at execution time.
type Task struct {
	name  string
	chain *BehaviorChain
	props map[string]any

	inputs  map[string]*InputPort
	outputs map[string]*OutputPort

	node *model.Node
	log  logging.Logger
}

// NewTask constructs a task around a behaviour chain.
func NewTask(name string, chain *BehaviorChain, log logging.Logger) *Task {
	if log == nil {
		log = logging.Noop()
	}
	return &Task{
		name:    name,
		chain:   chain,
		props:   make(map[string]any),
		inputs:  make(map[string]*InputPort),
		outputs: make(map[string]*OutputPort),
		log:     log,
	}
}

// Name returns the task name.
func (t *Task) Name() string { return t.name }

// Chain returns the task's behaviour chain.
func (t *Task) Chain() *BehaviorChain { return t.chain }

// Node returns the node the task is bound to, or nil before Execute.
func (t *Task) Node() *model.Node { return t.node }

// AddOutputPort creates and registers a named output port.
func (t *Task) AddOutputPort(name string) *OutputPort {
	p := &OutputPort{name: name, task: t}
	t.outputs[name] = p
	return p
}

// AddInputPort creates and registers a named input port.
func (t *Task) AddInputPort(name string) *InputPort {
	p := &InputPort{name: name, task: t}
	t.inputs[name] = p
	return p
}

// OutputPort returns the named output port, or nil.
func (t *Task) OutputPort(name string) *OutputPort { return t.outputs[name] }

// InputPort returns the named input port, or nil.
func (t *Task) InputPort(name string) *InputPort { return t.inputs[name] }

// SetProperty stores a configuration value on the task's property bag.
func (t *Task) SetProperty(key string, value any) { t.props[key] = value }

// Property returns a configuration value and whether it is present.
func (t *Task) Property(key string) (any, bool) {
	v, ok := t.props[key]
	return v, ok
}

// PropertyString returns a string property, or def when absent or of another
// type.
func (t *Task) PropertyString(key, def string) string {
	if v, ok := t.props[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// PropertyFloat returns a numeric property, or def when absent or of another
// type.
func (t *Task) PropertyFloat(key string, def float64) float64 {
	v, ok := t.props[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return def
	}
}

// Execute validates the chain, binds the task to a node (set-once), and
// schedules the chain's first segment at the current instant. From then on
// the chain drives itself through the calendar.
func (t *Task) Execute(cal *timectrl.Calendar, node *model.Node) error {
	if t.node != nil {
		return fmt.Errorf("task %q: %w", t.name, ErrTaskBound)
	}
	if err := t.chain.Validate(); err != nil {
		return fmt.Errorf("task %q: %w", t.name, err)
	}
	t.node = node

	r := &chainRunner{
		task:  t,
		chain: t.chain,
		node:  node,
		cal:   cal,
		log:   t.log.With(logging.String("task", t.name), logging.String("node", node.Name())),
	}
	r.startIteration()
	return nil
}

// chainRunner drives one task's chain through the calendar. Each segment
// step is a separate calendar event, even for zero-delay transitions, so
// same-instant work from concurrently active tasks interleaves fairly in
// FIFO order.
type chainRunner struct {
	task  *Task
	chain *BehaviorChain
	node  *model.Node
	cal   *timectrl.Calendar
	log   logging.Logger

	ctx     *TaskContext
	current Segment
	done    bool
}

// startIteration begins a fresh pass over the chain: new context, first
// segment, scheduled at the current instant.
func (r *chainRunner) startIteration() {
	r.ctx = NewTaskContext()
	r.current = r.chain.first()
	r.cal.Schedule(r.cal.Now(), r.step)
}

// step executes the current segment once and decides what happens next. It
// always returns control to the calendar afterwards.
func (r *chainRunner) step() {
	if r.done {
		return
	}
	act := &Activation{
		Task:    r.task,
		Node:    r.node,
		Cal:     r.cal,
		Context: r.ctx,
		Resume: func() {
			r.cal.Schedule(r.cal.Now(), r.step)
		},
		Log: r.log,
	}

	res, err := r.current.Execute(act)
	if err != nil {
		r.fail(err)
		return
	}
	if res.waits {
		// The segment armed its wake-up source with act.Resume; nothing to
		// schedule here.
		return
	}

	outcome := res.outcome
	onElapse := res.onElapse
	if res.delay > 0 {
		r.cal.ScheduleAfter(res.delay, func() {
			if onElapse != nil {
				onElapse()
			}
			r.advance(outcome)
		})
		return
	}
	if onElapse != nil {
		onElapse()
	}
	r.advance(outcome)
}

// advance consults the routing table and schedules the next segment, loops,
// or stops. Routing gaps cannot occur here: Validate proved every
// non-terminal declared outcome resolves. An undeclared outcome at run time
// is treated as a data error and aborts the chain.
func (r *chainRunner) advance(outcome Outcome) {
	next, ok := r.chain.next(r.current, outcome)
	if ok {
		r.current = next
		r.cal.Schedule(r.cal.Now(), r.step)
		return
	}
	if r.chain.isTerminal(r.current) && outcome == OutcomeSuccess {
		if r.chain.Looping() {
			r.startIteration()
			return
		}
		r.done = true
		r.log.Debug(context.Background(), "chain reached terminal state")
		return
	}
	r.fail(fmt.Errorf("segment %q produced unrouted outcome %q", r.current.Name(), outcome))
}

// fail aborts this task's chain only. Other tasks' contexts are untouched;
// the policy for data errors is containment, not simulation shutdown.
func (r *chainRunner) fail(err error) {
	r.done = true
	r.log.Error(context.Background(), "task activation failed",
		logging.String("segment", r.current.Name()),
		logging.String("error", err.Error()))
}
