package pipeline

import (
	"testing"
	"time"

	"github.com/hexquarry/battle/types"
)

func TestProgressHub_SubscriberReceivesPublishedFrame(t *testing.T) {
	h := NewProgressHub()
	ch, unsubscribe := h.Subscribe("job-1")
	defer unsubscribe()

	h.Publish("job-1", types.ProgressFrame{JobID: "job-1", Progress: 30})

	select {
	case frame := <-ch:
		if frame.Progress != 30 {
			t.Errorf("expected progress 30, got %d", frame.Progress)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
	}
}

func TestProgressHub_LateSubscriberGetsSnapshot(t *testing.T) {
	h := NewProgressHub()
	h.Publish("job-1", types.ProgressFrame{JobID: "job-1", Progress: 50})

	ch, unsubscribe := h.Subscribe("job-1")
	defer unsubscribe()

	select {
	case frame := <-ch:
		if frame.Progress != 50 {
			t.Errorf("expected progress 50, got %d", frame.Progress)
		}
	case <-time.After(time.Second):
		t.Fatal("late subscriber did not receive snapshot")
	}
}

func TestProgressHub_TerminalFrameClosesChannel(t *testing.T) {
	h := NewProgressHub()
	ch, unsubscribe := h.Subscribe("job-1")
	defer unsubscribe()

	h.Publish("job-1", types.ProgressFrame{JobID: "job-1", State: types.JobCompleted, Progress: 100})

	select {
	case frame, ok := <-ch:
		if !ok {
			t.Fatal("expected channel to still be open for the terminal frame itself")
		}
		if !frame.Terminal() {
			t.Error("expected a terminal frame")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}

	if _, ok := <-ch; ok {
		t.Error("channel must be closed after terminal frame")
	}
}

func TestProgressHub_MultipleSubscribersAllReceive(t *testing.T) {
	h := NewProgressHub()
	ch1, unsub1 := h.Subscribe("job-1")
	ch2, unsub2 := h.Subscribe("job-1")
	defer unsub1()
	defer unsub2()

	h.Publish("job-1", types.ProgressFrame{JobID: "job-1", Progress: 10})

	for _, ch := range []<-chan types.ProgressFrame{ch1, ch2} {
		select {
		case frame := <-ch:
			if frame.Progress != 10 {
				t.Errorf("expected progress 10, got %d", frame.Progress)
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive frame")
		}
	}
}

func TestProgressHub_CoalescesWhenBufferFull(t *testing.T) {
	h := NewProgressHub()
	_, unsubscribe := h.Subscribe("job-1")
	defer unsubscribe()

	for i := 0; i < frameBufferSize+5; i++ {
		h.Publish("job-1", types.ProgressFrame{JobID: "job-1", Progress: i})
	}
	// No assertion beyond "does not block/panic" — coalescing under
	// backpressure is explicitly allowed to drop intermediate frames.
}

func TestProgressHub_Heartbeat_RepublishesLastFrame(t *testing.T) {
	h := NewProgressHub()
	ch, unsubscribe := h.Subscribe("job-1")
	defer unsubscribe()

	h.Publish("job-1", types.ProgressFrame{JobID: "job-1", Progress: 40})
	<-ch // drain the initial publish

	h.Heartbeat("job-1")

	select {
	case frame := <-ch:
		if !frame.Heartbeat {
			t.Error("expected heartbeat frame")
		}
		if frame.Progress != 40 {
			t.Errorf("expected progress 40, got %d", frame.Progress)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for heartbeat")
	}
}
