package task

import (
	"errors"
	"testing"
	"time"
)

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func waitStatus(t *testing.T, tk *RecognitionTask, want Status) {
	t.Helper()
	waitFor(t, 2*time.Second, func() bool { return tk.Status() == want },
		"status "+want.String())
}

func TestStageWeightsSumToOne(t *testing.T) {
	sum := 0.0
	for s := StageInit; s < stageCount; s++ {
		sum += s.Weight()
	}
	if diff := sum - 1.0; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("stage weights sum to %v, want 1", sum)
	}
}

func TestCompleteStageWithResultPublishes(t *testing.T) {
	tk := NewRecognitionTask(nil, PriorityNormal, nil)
	var events []ProgressEvent
	tk.SetObserver(ObserverFunc(func(ev ProgressEvent) { events = append(events, ev) }))

	tk.CompleteStageWithResult(StageCFCluster, 3, "CF candidates")

	if len(events) != 2 {
		t.Fatalf("got %d events, want a progress event and a result event", len(events))
	}
	if events[0].Result != nil {
		t.Error("progress event should not carry a stage result")
	}
	res := events[1].Result
	if res == nil {
		t.Fatal("completion event should carry a stage result")
	}
	if res.Stage != StageCFCluster || res.Count != 3 || res.Detail != "CF candidates" {
		t.Errorf("stage result = %+v", res)
	}
}

func TestTaskCompletes(t *testing.T) {
	tk := NewRecognitionTask(nil, PriorityNormal, func(tk *RecognitionTask) error {
		for s := StageInit; s < stageCount; s++ {
			if !tk.CheckPauseAndCancel() {
				return ErrCancelled
			}
			tk.CompleteStage(s)
		}
		return nil
	})
	if tk.Status() != StatusPending {
		t.Fatalf("new task status = %s", tk.Status())
	}
	if !tk.Start() {
		t.Fatal("Start on pending task returned false")
	}
	if tk.Start() {
		t.Error("second Start should return false")
	}
	waitStatus(t, tk, StatusCompleted)
	if tk.Progress() != 1 {
		t.Errorf("completed progress = %v, want 1", tk.Progress())
	}
}

func TestTaskFailure(t *testing.T) {
	tk := NewRecognitionTask(nil, PriorityNormal, func(tk *RecognitionTask) error {
		return errors.New("stage blew up")
	})
	tk.Start()
	waitStatus(t, tk, StatusFailed)
	if tk.Err() != "stage blew up" {
		t.Errorf("Err() = %q", tk.Err())
	}
}

func TestTaskPanicBecomesFailure(t *testing.T) {
	tk := NewRecognitionTask(nil, PriorityNormal, func(tk *RecognitionTask) error {
		panic("executor bug")
	})
	tk.Start()
	waitStatus(t, tk, StatusFailed)
	if tk.Err() == "" {
		t.Error("panic should leave an error message")
	}
}

func TestPauseOnlyFromRunning(t *testing.T) {
	tk := NewRecognitionTask(nil, PriorityNormal, func(tk *RecognitionTask) error { return nil })
	if tk.Pause() {
		t.Error("Pause on pending task should return false")
	}
	tk.Start()
	waitStatus(t, tk, StatusCompleted)
	if tk.Pause() {
		t.Error("Pause on completed task should return false")
	}
	if tk.Resume() {
		t.Error("Resume on completed task should return false")
	}
}

func TestPauseSuspendsAtCheckpoint(t *testing.T) {
	ticks := make(chan struct{}, 1000)
	done := make(chan struct{})
	tk := NewRecognitionTask(nil, PriorityNormal, func(tk *RecognitionTask) error {
		defer close(done)
		for {
			if !tk.CheckPauseAndCancel() {
				return ErrCancelled
			}
			select {
			case ticks <- struct{}{}:
			default:
			}
			time.Sleep(time.Millisecond)
		}
	})
	tk.Start()
	waitFor(t, time.Second, func() bool { return len(ticks) > 0 }, "first tick")

	if !tk.Pause() {
		t.Fatal("Pause on running task returned false")
	}
	// Drain, then confirm the executor stops ticking once it reaches the
	// checkpoint.
	time.Sleep(20 * time.Millisecond)
	for len(ticks) > 0 {
		<-ticks
	}
	time.Sleep(50 * time.Millisecond)
	if len(ticks) != 0 {
		t.Fatal("executor kept running while paused")
	}

	if !tk.Resume() {
		t.Fatal("Resume on paused task returned false")
	}
	waitFor(t, time.Second, func() bool { return len(ticks) > 0 }, "tick after resume")

	if !tk.Cancel() {
		t.Fatal("Cancel on running task returned false")
	}
	waitStatus(t, tk, StatusCancelled)
	<-done
}

func TestCancelWhilePausedWakesImmediately(t *testing.T) {
	tk := NewRecognitionTask(nil, PriorityNormal, func(tk *RecognitionTask) error {
		for tk.CheckPauseAndCancel() {
			time.Sleep(time.Millisecond)
		}
		return ErrCancelled
	})
	tk.Start()
	waitStatus(t, tk, StatusRunning)
	tk.Pause()
	start := time.Now()
	tk.Cancel()
	waitStatus(t, tk, StatusCancelled)
	// The checkpoint must wake on the cancel signal, not ride out a full
	// bounded-wait slice times many iterations.
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("cancel from paused took %v", elapsed)
	}
}

func TestCancelSucceedsExactlyOnce(t *testing.T) {
	tk := NewRecognitionTask(nil, PriorityNormal, func(tk *RecognitionTask) error { return nil })
	if !tk.Cancel() {
		t.Fatal("first Cancel returned false")
	}
	if tk.Cancel() {
		t.Error("second Cancel should return false")
	}
	if tk.Status() != StatusCancelled {
		t.Errorf("status = %s", tk.Status())
	}
}

func TestProgressNeverDecreases(t *testing.T) {
	tk := NewRecognitionTask(nil, PriorityNormal, nil)
	tk.UpdateStage(StagePWCluster, 0.5)
	before := tk.Progress()
	// A stale update for an earlier stage must not move progress backwards.
	tk.UpdateStage(StageCFCluster, 0.1)
	if tk.Progress() < before {
		t.Errorf("progress decreased: %v -> %v", before, tk.Progress())
	}
}

func TestProgressTracksStageWeights(t *testing.T) {
	tk := NewRecognitionTask(nil, PriorityNormal, nil)
	tk.CompleteStage(StageInit)
	want := StageInit.Weight()
	if got := tk.Progress(); got != want {
		t.Errorf("after init: %v, want %v", got, want)
	}
	tk.UpdateStage(StageCFCluster, 0.5)
	want = StageInit.Weight() + 0.5*StageCFCluster.Weight()
	if got := tk.Progress(); got-want > 1e-12 || want-got > 1e-12 {
		t.Errorf("mid CF cluster: %v, want %v", got, want)
	}
}

func TestStartWithoutExecFunc(t *testing.T) {
	tk := NewRecognitionTask(nil, PriorityNormal, nil)
	if tk.Start() {
		t.Error("Start without an exec function should return false")
	}
}

func TestObserverSeesLifecycle(t *testing.T) {
	obs := NewChannelObserver(64)
	tk := NewRecognitionTask(nil, PriorityNormal, func(tk *RecognitionTask) error {
		tk.CompleteStage(StageInit)
		return nil
	})
	tk.SetObserver(obs)
	tk.Start()
	waitStatus(t, tk, StatusCompleted)

	var overall []float64
	drain := true
	for drain {
		select {
		case ev := <-obs.Events():
			overall = append(overall, ev.Overall)
		default:
			drain = false
		}
	}
	if len(overall) < 2 {
		t.Fatalf("observer saw %d events", len(overall))
	}
	for i := 1; i < len(overall); i++ {
		if overall[i] < overall[i-1] {
			t.Fatalf("observed progress regressed: %v", overall)
		}
	}
}

func TestChannelObserverDropsWhenFull(t *testing.T) {
	obs := NewChannelObserver(1)
	obs.Notify(ProgressEvent{})
	obs.Notify(ProgressEvent{})
	if obs.Dropped() != 1 {
		t.Errorf("dropped = %d, want 1", obs.Dropped())
	}
}
