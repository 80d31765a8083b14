package task

import "sync/atomic"

// StageResult summarizes what a completed stage produced: candidates out of
// a cluster pass, results out of a recognition pass, parameter sets out of
// extraction.
type StageResult struct {
	Stage  Stage
	Count  int
	Detail string
}

// ProgressEvent is one observable change in a task: a status transition, a
// stage progress update, or a stage completion. Result is set only on
// completion events.
type ProgressEvent struct {
	TaskID        string
	Status        Status
	Stage         Stage
	StageProgress float64
	Overall       float64
	Message       string
	Result        *StageResult
}

// ProgressObserver receives task events. Implementations must not block:
// events are published from inside the execution path.
type ProgressObserver interface {
	Notify(ev ProgressEvent)
}

// ObserverFunc adapts a function to ProgressObserver.
type ObserverFunc func(ev ProgressEvent)

// Notify calls the function.
func (f ObserverFunc) Notify(ev ProgressEvent) { f(ev) }

// ChannelObserver buffers events on a channel for a consumer goroutine.
// When the buffer is full the event is dropped and counted rather than
// blocking the publisher.
type ChannelObserver struct {
	ch      chan ProgressEvent
	dropped atomic.Uint64
}

// NewChannelObserver allocates an observer with the given buffer size.
func NewChannelObserver(buffer int) *ChannelObserver {
	if buffer < 1 {
		buffer = 1
	}
	return &ChannelObserver{ch: make(chan ProgressEvent, buffer)}
}

// Notify enqueues the event, dropping it if the consumer has fallen behind.
func (o *ChannelObserver) Notify(ev ProgressEvent) {
	select {
	case o.ch <- ev:
	default:
		o.dropped.Add(1)
	}
}

// Events returns the consumer side of the buffer.
func (o *ChannelObserver) Events() <-chan ProgressEvent { return o.ch }

// Dropped returns how many events were discarded on a full buffer.
func (o *ChannelObserver) Dropped() uint64 { return o.dropped.Load() }

var (
	_ ProgressObserver = (ObserverFunc)(nil)
	_ ProgressObserver = (*ChannelObserver)(nil)
)
