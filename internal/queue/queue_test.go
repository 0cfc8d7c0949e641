package queue

import "testing"

const clickPath = "/assets/click.wav"

func TestFilePriorityClearsClicks(t *testing.T) {
	q := New(clickPath)
	q.SubmitClick()
	q.SubmitClick()
	q.SubmitClick()
	q.SubmitFile("/notify.wav", false)

	req, ok := q.Next()
	if !ok {
		t.Fatal("expected a pending request")
	}
	if req.Path != "/notify.wav" || req.Click {
		t.Errorf("first request = %+v, want the file", req)
	}

	// The clicks submitted before the file must be gone.
	if _, ok := q.Next(); ok {
		t.Error("expected empty queue after the file request")
	}
}

func TestFileCoalescingNewestWins(t *testing.T) {
	q := New(clickPath)
	q.SubmitFile("/first.wav", false)
	q.SubmitFile("/second.wav", true)

	req, ok := q.Next()
	if !ok {
		t.Fatal("expected a pending request")
	}
	if req.Path != "/second.wav" {
		t.Errorf("path = %q, want /second.wav", req.Path)
	}
	if !req.FromSD {
		t.Error("expected FromSD from the winning request")
	}
	if _, ok := q.Next(); ok {
		t.Error("/first.wav must never be dequeued")
	}
}

func TestClickBacklogDrainsInOrder(t *testing.T) {
	q := New(clickPath)
	q.SubmitClick()
	q.SubmitClick()

	for i := 0; i < 2; i++ {
		req, ok := q.Next()
		if !ok {
			t.Fatalf("click %d missing", i)
		}
		if !req.Click || req.Path != clickPath {
			t.Errorf("click %d = %+v", i, req)
		}
		if req.FromSD {
			t.Error("click asset always lives on flash")
		}
	}
	if _, ok := q.Next(); ok {
		t.Error("expected empty queue after drain")
	}
}

func TestClearDropsEverything(t *testing.T) {
	q := New(clickPath)
	q.SubmitClick()
	q.SubmitClick()
	q.SubmitFile("/x.wav", false)
	q.SubmitClick()
	q.Clear()

	if q.Pending() {
		t.Error("Pending() = true after Clear")
	}
	if _, ok := q.Next(); ok {
		t.Error("Next() returned work after Clear")
	}
}

func TestPending(t *testing.T) {
	q := New(clickPath)
	if q.Pending() {
		t.Error("new queue reports pending work")
	}
	q.SubmitClick()
	if !q.Pending() {
		t.Error("click not reported as pending")
	}
	q.Next()
	if q.Pending() {
		t.Error("drained queue reports pending work")
	}
}
