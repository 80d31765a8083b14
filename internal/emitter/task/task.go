// Package task runs recognition sessions as pausable, cancellable units of
// work under a bounded-concurrency scheduler.
package task

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/emitter.report/internal/emitter"
)

// Stage identifies one phase of a recognition run.
type Stage int

// Pipeline stages, in execution order.
const (
	StageInit Stage = iota
	StageCFCluster
	StageCFRecognize
	StagePWCluster
	StagePWRecognize
	StageExtract
	StageFinalize
	stageCount
)

// stageWeights apportion overall progress across the stages. They sum to 1.
var stageWeights = [stageCount]float64{
	StageInit:        0.05,
	StageCFCluster:   0.20,
	StageCFRecognize: 0.25,
	StagePWCluster:   0.20,
	StagePWRecognize: 0.25,
	StageExtract:     0.04,
	StageFinalize:    0.01,
}

// Weight returns the stage's share of overall progress.
func (s Stage) Weight() float64 {
	if s < 0 || s >= stageCount {
		return 0
	}
	return stageWeights[s]
}

func (s Stage) String() string {
	switch s {
	case StageInit:
		return "init"
	case StageCFCluster:
		return "cf_cluster"
	case StageCFRecognize:
		return "cf_recognize"
	case StagePWCluster:
		return "pw_cluster"
	case StagePWRecognize:
		return "pw_recognize"
	case StageExtract:
		return "extract"
	case StageFinalize:
		return "finalize"
	default:
		return "unknown"
	}
}

// Status is the task lifecycle state.
type Status int

// Task statuses. Completed, Failed and Cancelled are terminal.
const (
	StatusPending Status = iota
	StatusRunning
	StatusPaused
	StatusCompleted
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusPaused:
		return "paused"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the status can never change again.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Priority orders dispatch; lower values dispatch first, ties break by
// submission order.
type Priority int

// Priorities
const (
	PriorityUrgent Priority = iota
	PriorityHigh
	PriorityNormal
	PriorityLow
)

// ErrCancelled is returned by execution functions that stop at a checkpoint
// because the task was cancelled.
var ErrCancelled = errors.New("task cancelled")

// pauseWaitSlice bounds how long a paused checkpoint sleeps before
// re-checking state, so a missed wakeup can never hang a task.
const pauseWaitSlice = 100 * time.Millisecond

// ExecFunc is the work a task runs. It must call CheckPauseAndCancel at its
// own checkpoints and return promptly (conventionally with ErrCancelled)
// when that reports cancellation.
type ExecFunc func(*RecognitionTask) error

// RecognitionTask is one pausable recognition run over a single session.
// All state transitions go through the task's mutex; the execution function
// runs on its own goroutine and suspends only inside CheckPauseAndCancel.
type RecognitionTask struct {
	id       string
	priority Priority
	session  *emitter.RecognitionSession
	exec     ExecFunc
	observer ProgressObserver // may be nil

	mu            sync.Mutex
	status        Status
	stage         Stage
	stageProgress float64
	overall       float64
	errMsg        string
	createdAt     time.Time
	startedAt     time.Time
	finishedAt    time.Time
	resumeCh      chan struct{}
	cancelCh      chan struct{}
	onFinish      func(*RecognitionTask) // installed by the scheduler
}

// NewRecognitionTask builds a pending task. exec may be nil only if Start is
// never called directly (the scheduler rejects such tasks at submit).
func NewRecognitionTask(session *emitter.RecognitionSession, priority Priority, exec ExecFunc) *RecognitionTask {
	return &RecognitionTask{
		id:        uuid.NewString(),
		priority:  priority,
		session:   session,
		exec:      exec,
		status:    StatusPending,
		createdAt: time.Now(),
		cancelCh:  make(chan struct{}),
	}
}

// SetObserver attaches a progress observer. Call before Start.
func (t *RecognitionTask) SetObserver(o ProgressObserver) { t.observer = o }

// ID returns the task id.
func (t *RecognitionTask) ID() string { return t.id }

// TaskPriority returns the dispatch priority.
func (t *RecognitionTask) TaskPriority() Priority { return t.priority }

// Session returns the session this task operates on.
func (t *RecognitionTask) Session() *emitter.RecognitionSession { return t.session }

// Status returns the current lifecycle state.
func (t *RecognitionTask) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Progress returns the overall progress in [0, 1]. It never decreases.
func (t *RecognitionTask) Progress() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.overall
}

// Err returns the failure message, empty unless the task failed.
func (t *RecognitionTask) Err() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.errMsg
}

// Start launches the execution goroutine. Only a pending task starts;
// anything else returns false.
func (t *RecognitionTask) Start() bool {
	t.mu.Lock()
	if t.status != StatusPending || t.exec == nil {
		t.mu.Unlock()
		return false
	}
	t.status = StatusRunning
	t.startedAt = time.Now()
	t.mu.Unlock()
	t.notify("started")
	go t.run()
	return true
}

// Pause requests suspension. Only a running task pauses; the executor
// actually stops at its next checkpoint.
func (t *RecognitionTask) Pause() bool {
	t.mu.Lock()
	if t.status != StatusRunning {
		t.mu.Unlock()
		return false
	}
	t.status = StatusPaused
	t.resumeCh = make(chan struct{})
	t.mu.Unlock()
	t.notify("paused")
	return true
}

// Resume releases a paused task.
func (t *RecognitionTask) Resume() bool {
	t.mu.Lock()
	if t.status != StatusPaused {
		t.mu.Unlock()
		return false
	}
	t.status = StatusRunning
	close(t.resumeCh)
	t.resumeCh = nil
	t.mu.Unlock()
	t.notify("resumed")
	return true
}

// Cancel moves any non-terminal task to cancelled. It succeeds exactly
// once; a paused task wakes immediately. Cancelling a pending task
// finalizes it on the spot since no goroutine will ever run it.
func (t *RecognitionTask) Cancel() bool {
	t.mu.Lock()
	if t.status.IsTerminal() {
		t.mu.Unlock()
		return false
	}
	wasPending := t.status == StatusPending
	t.status = StatusCancelled
	close(t.cancelCh)
	if wasPending {
		t.finishedAt = time.Now()
	}
	t.mu.Unlock()
	t.notify("cancelled")
	if wasPending {
		t.finish()
	}
	return true
}

// CheckPauseAndCancel is the executor's sole suspension point. It blocks
// while the task is paused, waking on resume, cancel, or the bounded wait
// slice, and reports false once the task is cancelled.
func (t *RecognitionTask) CheckPauseAndCancel() bool {
	for {
		t.mu.Lock()
		status := t.status
		resume := t.resumeCh
		t.mu.Unlock()

		switch status {
		case StatusCancelled:
			return false
		case StatusPaused:
			select {
			case <-t.cancelCh:
				return false
			case <-resume:
			case <-time.After(pauseWaitSlice):
			}
		default:
			return true
		}
	}
}

// UpdateStage records stage progress. Overall progress is the sum of the
// weights of completed stages plus the weighted progress of the current
// one, and is clamped so it never moves backwards.
func (t *RecognitionTask) UpdateStage(stage Stage, progress float64) {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	t.mu.Lock()
	t.stage = stage
	t.stageProgress = progress
	overall := 0.0
	for s := StageInit; s < stage; s++ {
		overall += s.Weight()
	}
	overall += stage.Weight() * progress
	if overall > t.overall {
		t.overall = overall
	}
	t.mu.Unlock()
	t.notify("")
}

// CompleteStage marks a stage fully done.
func (t *RecognitionTask) CompleteStage(stage Stage) {
	t.UpdateStage(stage, 1)
}

// CompleteStageWithResult marks a stage done and publishes what it produced.
// The observer gets the usual progress event followed by one carrying the
// stage result.
func (t *RecognitionTask) CompleteStageWithResult(stage Stage, count int, detail string) {
	t.UpdateStage(stage, 1)
	if t.observer == nil {
		return
	}
	t.mu.Lock()
	ev := ProgressEvent{
		TaskID:        t.id,
		Status:        t.status,
		Stage:         stage,
		StageProgress: 1,
		Overall:       t.overall,
		Result:        &StageResult{Stage: stage, Count: count, Detail: detail},
	}
	t.mu.Unlock()
	t.observer.Notify(ev)
}

// Summary is a point-in-time snapshot of the task.
type Summary struct {
	ID            string
	Status        Status
	Stage         Stage
	StageProgress float64
	Overall       float64
	Priority      Priority
	SliceIndex    int
	Error         string
	CreatedAt     time.Time
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Summarize snapshots the task state.
func (t *RecognitionTask) Summarize() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := Summary{
		ID:            t.id,
		Status:        t.status,
		Stage:         t.stage,
		StageProgress: t.stageProgress,
		Overall:       t.overall,
		Priority:      t.priority,
		Error:         t.errMsg,
		CreatedAt:     t.createdAt,
		StartedAt:     t.startedAt,
		FinishedAt:    t.finishedAt,
	}
	if t.session != nil {
		s.SliceIndex = t.session.SliceIndex
	}
	return s
}

// run executes the work function and settles the terminal state. It is the
// single catch boundary: a panic in the executor fails the task instead of
// crashing the process.
func (t *RecognitionTask) run() {
	var execErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				execErr = &emitter.ProcessingError{Stage: t.stageLocked().String(), Message: "panic in executor", Err: toError(r)}
			}
		}()
		execErr = t.exec(t)
	}()

	t.mu.Lock()
	switch {
	case t.status == StatusCancelled:
		// Cancelled at a checkpoint; keep the state.
	case execErr != nil && !errors.Is(execErr, ErrCancelled):
		t.status = StatusFailed
		t.errMsg = execErr.Error()
	default:
		t.status = StatusCompleted
		t.overall = 1
	}
	t.finishedAt = time.Now()
	status := t.status
	t.mu.Unlock()

	t.notify("finished: " + status.String())
	t.finish()
}

func (t *RecognitionTask) stageLocked() Stage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stage
}

func (t *RecognitionTask) finish() {
	if t.onFinish != nil {
		t.onFinish(t)
	}
}

// notify publishes a progress event; it never blocks on the observer.
func (t *RecognitionTask) notify(message string) {
	if t.observer == nil {
		return
	}
	t.mu.Lock()
	ev := ProgressEvent{
		TaskID:        t.id,
		Status:        t.status,
		Stage:         t.stage,
		StageProgress: t.stageProgress,
		Overall:       t.overall,
		Message:       message,
	}
	t.mu.Unlock()
	t.observer.Notify(ev)
}

func toError(r interface{}) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("%v", r)
}
