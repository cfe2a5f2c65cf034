package core

import (
	"fmt"
	"time"

	"github.com/signalsfoundry/sensornet-simulator/internal/logging"
	"github.com/signalsfoundry/sensornet-simulator/model"
	"github.com/signalsfoundry/sensornet-simulator/timectrl"
)

// Outcome is a named control-flow signal produced by a segment. It routes
// between segments and carries no payload.
type Outcome string

// Stock outcomes. Segments are free to produce their own names as long as
// the chain routes them.
const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Well-known context keys consumed and produced by the stock segments.
const (
	// FlopsKey and IopsKey carry operation counts into a CalculateSegment.
	FlopsKey = "FLOPS"
	IopsKey  = "IOPS"
	// MessageSendKey is where a SendSegment expects its outgoing message.
	MessageSendKey = "MESSAGE_SEND"
	// MessageReceivedKey is where a ReceiveSegment deposits an arrival.
	MessageReceivedKey = "MESSAGE_RECEIVED"
)

// Activation is the execution environment handed to a segment: the owning
// task, the node it is bound to, the calendar clock, the task context, and a
// resume hook a suspending segment hands to its wake-up source.
type Activation struct {
	Task    *Task
	Node    *model.Node
	Cal     *timectrl.Calendar
	Context *TaskContext
	Resume  func()
	Log     logging.Logger
}

// StepResult is what one segment execution produces: an immediate outcome, an
// outcome that takes effect after a simulated delay, or a suspension awaiting
// a message. Delay and suspension are the only two points where a chain
// yields for more than one calendar step.
type StepResult struct {
	outcome  Outcome
	delay    time.Duration
	waits    bool
	onElapse func()
}

// Done produces an immediate outcome. The next segment runs at the same
// simulated instant, after the calendar processes any events already queued
// for it.
func Done(o Outcome) StepResult {
	return StepResult{outcome: o}
}

// DoneAfter produces an outcome that takes effect after d of simulated time.
// onElapse, if non-nil, runs when the delay expires and before routing; use
// it to drop a device out of a mode that was held for the duration.
func DoneAfter(o Outcome, d time.Duration, onElapse func()) StepResult {
	if d < 0 {
		d = 0
	}
	return StepResult{outcome: o, delay: d, onElapse: onElapse}
}

// Await suspends the segment until its wake-up source calls the activation's
// Resume hook, at which point the same segment executes again.
func Await() StepResult {
	return StepResult{waits: true}
}

// Segment is an atomic unit of task behaviour. A segment is stateless across
// activations except through the task context; everything it needs arrives
// through the Activation.
type Segment interface {
	Name() string
	Execute(act *Activation) (StepResult, error)
}

// OutcomeSet is optionally implemented by segments that can produce outcomes
// beyond OutcomeSuccess; chain validation checks every declared outcome has a
// route.
type OutcomeSet interface {
	Outcomes() []Outcome
}

// KeyManifest is optionally implemented by segments to declare the context
// keys they read and write. Chain validation checks every read key against
// the union of writes, catching missing-key errors before simulated time
// begins.
type KeyManifest interface {
	Reads() []string
	Writes() []string
}

// DelaySegment models pure waiting: no computation, no power implication
// beyond whatever mode its devices already hold.
type DelaySegment struct {
	name  string
	delay time.Duration
}

// NewDelaySegment constructs a segment that succeeds after d of simulated
// time.
func NewDelaySegment(name string, d time.Duration) *DelaySegment {
	return &DelaySegment{name: name, delay: d}
}

func (s *DelaySegment) Name() string { return s.name }

func (s *DelaySegment) Execute(act *Activation) (StepResult, error) {
	return DoneAfter(OutcomeSuccess, s.delay, nil), nil
}

// CalculateSegment converts operation counts from the context into elapsed
// simulated time via the node's processor throughput, holding the processor
// in BUSY for the duration.
type CalculateSegment struct {
	name string
}

// NewCalculateSegment constructs a calculate segment reading FlopsKey and
// IopsKey.
func NewCalculateSegment(name string) *CalculateSegment {
	return &CalculateSegment{name: name}
}

func (s *CalculateSegment) Name() string { return s.name }

func (s *CalculateSegment) Reads() []string  { return []string{FlopsKey, IopsKey} }
func (s *CalculateSegment) Writes() []string { return nil }

func (s *CalculateSegment) Execute(act *Activation) (StepResult, error) {
	flops, err := act.Context.GetFloat(FlopsKey)
	if err != nil {
		return StepResult{}, fmt.Errorf("segment %q: %w", s.name, err)
	}
	iops, err := act.Context.GetFloat(IopsKey)
	if err != nil {
		return StepResult{}, fmt.Errorf("segment %q: %w", s.name, err)
	}

	proc := act.Node.Processor()
	d := proc.CalcDuration(flops, iops)
	if err := proc.SetMode(model.ModeBusy); err != nil {
		return StepResult{}, fmt.Errorf("segment %q: %w", s.name, err)
	}
	return DoneAfter(OutcomeSuccess, d, func() {
		_ = proc.SetMode(model.ModeIdle)
	}), nil
}

// CopySegment threads a value produced under one context key into the key a
// downstream segment expects. It takes zero simulated time.
type CopySegment struct {
	name string
	from string
	to   string
}

// NewCopySegment constructs a copy segment moving from -> to.
func NewCopySegment(name, from, to string) *CopySegment {
	return &CopySegment{name: name, from: from, to: to}
}

func (s *CopySegment) Name() string { return s.name }

func (s *CopySegment) Reads() []string  { return []string{s.from} }
func (s *CopySegment) Writes() []string { return []string{s.to} }

func (s *CopySegment) Execute(act *Activation) (StepResult, error) {
	v, err := act.Context.Get(s.from)
	if err != nil {
		return StepResult{}, fmt.Errorf("segment %q: %w", s.name, err)
	}
	act.Context.Put(s.to, v)
	return Done(OutcomeSuccess), nil
}

// SendSegment sends the message stored under its context key through an
// output port.
type SendSegment struct {
	name string
	port *OutputPort
	key  string
}

// NewSendSegment constructs a send segment reading its message from key
// (MessageSendKey when empty).
func NewSendSegment(name string, port *OutputPort, key string) *SendSegment {
	if key == "" {
		key = MessageSendKey
	}
	return &SendSegment{name: name, port: port, key: key}
}

func (s *SendSegment) Name() string { return s.name }

func (s *SendSegment) Reads() []string  { return []string{s.key} }
func (s *SendSegment) Writes() []string { return nil }

func (s *SendSegment) Execute(act *Activation) (StepResult, error) {
	msg, err := act.Context.GetMessage(s.key)
	if err != nil {
		return StepResult{}, fmt.Errorf("segment %q: %w", s.name, err)
	}
	if err := s.port.Send(act.Cal, msg); err != nil {
		return StepResult{}, fmt.Errorf("segment %q: %w", s.name, err)
	}
	act.Context.Delete(s.key)
	return Done(OutcomeSuccess), nil
}

// ReceiveSegment consumes the oldest message queued on an input port. When
// blocking and the queue is empty it suspends until the port's next delivery;
// when non-blocking it produces OutcomeFailure instead.
type ReceiveSegment struct {
	name     string
	port     *InputPort
	blocking bool
	key      string
}

// NewReceiveSegment constructs a receive segment depositing arrivals under
// key (MessageReceivedKey when empty).
func NewReceiveSegment(name string, port *InputPort, blocking bool, key string) *ReceiveSegment {
	if key == "" {
		key = MessageReceivedKey
	}
	return &ReceiveSegment{name: name, port: port, blocking: blocking, key: key}
}

func (s *ReceiveSegment) Name() string { return s.name }

func (s *ReceiveSegment) Reads() []string  { return nil }
func (s *ReceiveSegment) Writes() []string { return []string{s.key} }

func (s *ReceiveSegment) Outcomes() []Outcome {
	if s.blocking {
		return []Outcome{OutcomeSuccess}
	}
	return []Outcome{OutcomeSuccess, OutcomeFailure}
}

func (s *ReceiveSegment) Execute(act *Activation) (StepResult, error) {
	msg, ok := s.port.Receive()
	if ok {
		act.Context.Put(s.key, msg)
		return Done(OutcomeSuccess), nil
	}
	if !s.blocking {
		return Done(OutcomeFailure), nil
	}
	s.port.AwaitDelivery(act.Resume)
	return Await(), nil
}

// FuncSegment wraps an arbitrary behaviour function, for model-specific
// steps the stock variants do not cover. Outcome and key manifests are
// supplied at construction so validation still sees them.
type FuncSegment struct {
	name     string
	fn       func(act *Activation) (StepResult, error)
	outcomes []Outcome
	reads    []string
	writes   []string
}

// NewFuncSegment constructs a custom segment. outcomes defaults to
// {OutcomeSuccess} when nil.
func NewFuncSegment(name string, fn func(act *Activation) (StepResult, error)) *FuncSegment {
	return &FuncSegment{name: name, fn: fn}
}

// DeclareOutcomes sets the outcomes chain validation should expect.
func (s *FuncSegment) DeclareOutcomes(outcomes ...Outcome) *FuncSegment {
	s.outcomes = outcomes
	return s
}

// DeclareKeys sets the read/write key manifest for validation.
func (s *FuncSegment) DeclareKeys(reads, writes []string) *FuncSegment {
	s.reads = reads
	s.writes = writes
	return s
}

func (s *FuncSegment) Name() string { return s.name }

func (s *FuncSegment) Outcomes() []Outcome {
	if len(s.outcomes) == 0 {
		return []Outcome{OutcomeSuccess}
	}
	return s.outcomes
}

func (s *FuncSegment) Reads() []string  { return s.reads }
func (s *FuncSegment) Writes() []string { return s.writes }

func (s *FuncSegment) Execute(act *Activation) (StepResult, error) {
	return s.fn(act)
}
