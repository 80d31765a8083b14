package task

import (
	"container/heap"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/emitter.report/internal/emitter"
	"github.com/banshee-data/emitter.report/internal/monitoring"
)

// dispatchTick bounds how long the dispatch loop sleeps between scans when
// nothing kicks it awake.
const dispatchTick = 100 * time.Millisecond

// queueItem is one queued task with its dispatch ordering key.
type queueItem struct {
	task  *RecognitionTask
	seq   uint64 // submission order, breaks priority ties FIFO
	index int
}

// taskQueue is a min-heap: lowest priority value first, then submission
// order.
type taskQueue []*queueItem

func (q taskQueue) Len() int { return len(q) }
func (q taskQueue) Less(i, j int) bool {
	if q[i].task.priority != q[j].task.priority {
		return q[i].task.priority < q[j].task.priority
	}
	return q[i].seq < q[j].seq
}
func (q taskQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}
func (q *taskQueue) Push(x interface{}) {
	item := x.(*queueItem)
	item.index = len(*q)
	*q = append(*q, item)
}
func (q *taskQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}

// QueueStatus is a snapshot of scheduler occupancy.
type QueueStatus struct {
	Queued        int
	Running       int
	Completed     int
	MaxConcurrent int
}

// TaskScheduler dispatches recognition tasks with bounded concurrency.
// Tasks dispatch in priority order (lower value first), FIFO within a
// priority. A dedicated goroutine owns dispatch; it wakes on submissions
// and completions and otherwise polls on dispatchTick.
type TaskScheduler struct {
	maxConcurrent int
	logf          func(format string, v ...interface{})

	mu        sync.Mutex
	queue     taskQueue
	tasks     map[string]*RecognitionTask
	running   map[string]*RecognitionTask
	completed map[string]*RecognitionTask
	nextSeq   uint64
	shutdown  bool

	kick chan struct{}
	stop chan struct{}
	done chan struct{}
}

// NewTaskScheduler validates maxConcurrent and starts the dispatch
// goroutine.
func NewTaskScheduler(maxConcurrent int) (*TaskScheduler, error) {
	if maxConcurrent < 1 {
		return nil, &emitter.ConfigError{Field: "max_concurrent_tasks", Message: "must be at least 1"}
	}
	s := &TaskScheduler{
		maxConcurrent: maxConcurrent,
		logf:          monitoring.Prefixed("TaskScheduler"),
		tasks:         make(map[string]*RecognitionTask),
		running:       make(map[string]*RecognitionTask),
		completed:     make(map[string]*RecognitionTask),
		kick:          make(chan struct{}, 1),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	go s.dispatchLoop()
	return s, nil
}

// Submit queues a task for dispatch.
func (s *TaskScheduler) Submit(t *RecognitionTask) error {
	if t == nil || t.exec == nil {
		return &emitter.ValidationError{Op: "submit", Message: "task has no execution function"}
	}
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return &emitter.ValidationError{Op: "submit", Message: "scheduler is shut down"}
	}
	if _, dup := s.tasks[t.id]; dup {
		s.mu.Unlock()
		return &emitter.ValidationError{Op: "submit", Message: "task already submitted"}
	}
	t.onFinish = s.taskFinished
	s.tasks[t.id] = t
	item := &queueItem{task: t, seq: s.nextSeq}
	s.nextSeq++
	heap.Push(&s.queue, item)
	s.mu.Unlock()

	s.logf("queued task %s (priority %d)", t.id, t.priority)
	s.wake()
	return nil
}

// Task looks up a known task by id.
func (s *TaskScheduler) Task(id string) (*RecognitionTask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	return t, ok
}

// PauseTask pauses a running task.
func (s *TaskScheduler) PauseTask(id string) error {
	return s.control(id, "pause", func(t *RecognitionTask) bool { return t.Pause() })
}

// ResumeTask resumes a paused task and wakes the dispatcher.
func (s *TaskScheduler) ResumeTask(id string) error {
	err := s.control(id, "resume", func(t *RecognitionTask) bool { return t.Resume() })
	if err == nil {
		s.wake()
	}
	return err
}

// CancelTask cancels a queued or in-flight task.
func (s *TaskScheduler) CancelTask(id string) error {
	return s.control(id, "cancel", func(t *RecognitionTask) bool { return t.Cancel() })
}

func (s *TaskScheduler) control(id, op string, apply func(*RecognitionTask) bool) error {
	t, ok := s.Task(id)
	if !ok {
		return &emitter.ValidationError{Op: op, Message: fmt.Sprintf("unknown task %s", id)}
	}
	if !apply(t) {
		return &emitter.ValidationError{Op: op, Message: fmt.Sprintf("task %s is %s", id, t.Status())}
	}
	return nil
}

// Status snapshots queue occupancy.
func (s *TaskScheduler) Status() QueueStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return QueueStatus{
		Queued:        s.queue.Len(),
		Running:       len(s.running),
		Completed:     len(s.completed),
		MaxConcurrent: s.maxConcurrent,
	}
}

// CompletedTasks returns the terminal tasks, unordered.
func (s *TaskScheduler) CompletedTasks() []*RecognitionTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*RecognitionTask, 0, len(s.completed))
	for _, t := range s.completed {
		out = append(out, t)
	}
	return out
}

// ClearCompleted drops terminal tasks from the bookkeeping and returns how
// many were dropped.
func (s *TaskScheduler) ClearCompleted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.completed)
	for id := range s.completed {
		delete(s.tasks, id)
	}
	s.completed = make(map[string]*RecognitionTask)
	return n
}

// Shutdown cancels every queued and running task, stops the dispatch
// goroutine, and waits up to timeout for in-flight tasks to settle.
func (s *TaskScheduler) Shutdown(timeout time.Duration) error {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return nil
	}
	s.shutdown = true
	var pending []*RecognitionTask
	for _, item := range s.queue {
		pending = append(pending, item.task)
	}
	for _, t := range s.running {
		pending = append(pending, t)
	}
	s.mu.Unlock()

	for _, t := range pending {
		t.Cancel()
	}
	close(s.stop)
	<-s.done

	deadline := time.Now().Add(timeout)
	for {
		s.mu.Lock()
		active := len(s.running)
		s.mu.Unlock()
		if active == 0 {
			s.logf("shutdown complete")
			return nil
		}
		if time.Now().After(deadline) {
			return &emitter.ResourceError{Resource: "scheduler", Message: fmt.Sprintf("%d tasks still running after shutdown timeout", active)}
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func (s *TaskScheduler) dispatchLoop() {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			return
		case <-s.kick:
		case <-time.After(dispatchTick):
		}
		s.dispatchReady()
	}
}

// dispatchReady starts queued tasks while slots are free. Tasks cancelled
// while queued are settled without occupying a slot.
func (s *TaskScheduler) dispatchReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.running) < s.maxConcurrent && s.queue.Len() > 0 {
		item := heap.Pop(&s.queue).(*queueItem)
		t := item.task
		if t.Status() != StatusPending {
			s.completed[t.id] = t
			continue
		}
		s.running[t.id] = t
		if !t.Start() {
			delete(s.running, t.id)
			s.completed[t.id] = t
			continue
		}
		s.logf("dispatched task %s (%d/%d slots)", t.id, len(s.running), s.maxConcurrent)
	}
}

// taskFinished is installed as every submitted task's completion hook.
func (s *TaskScheduler) taskFinished(t *RecognitionTask) {
	s.mu.Lock()
	delete(s.running, t.id)
	s.completed[t.id] = t
	s.mu.Unlock()
	s.logf("task %s finished: %s", t.id, t.Status())
	s.wake()
}

func (s *TaskScheduler) wake() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}
