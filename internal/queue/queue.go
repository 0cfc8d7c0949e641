// Package queue holds the pending playback work shared between the caller
// context and the worker goroutine: at most one direct-file request plus a
// count of pending click sounds.
package queue

import (
	"log/slog"
	"sync"
)

// Request is one unit of playback work handed to the worker.
type Request struct {
	// Path of the stream to play. For click requests this is the fixed
	// click asset path the queue was constructed with.
	Path string
	// FromSD selects the removable-media filesystem instead of flash.
	FromSD bool
	// Click marks a request for the built-in click asset.
	Click bool
}

// Queue coalesces playback requests under a single lock. Direct-file
// requests take priority over clicks: submitting a file clears every pending
// click and replaces any earlier file, newest wins. Both fields live under
// one mutex so a click can never slip out after a file was meant to
// supersede it.
type Queue struct {
	mu        sync.Mutex
	clickPath string
	filePath  string
	fileSD    bool
	clicks    int
}

// New creates an empty queue. clickPath is the identifier and flash path of
// the built-in click asset returned for click requests.
func New(clickPath string) *Queue {
	return &Queue{clickPath: clickPath}
}

// SubmitFile replaces any pending file request with path and voids all
// pending clicks.
func (q *Queue) SubmitFile(path string, fromSD bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.filePath != "" {
		slog.Debug("replacing pending file request", "old", q.filePath, "new", path)
	}
	if q.clicks > 0 {
		slog.Debug("file request voids pending clicks", "clicks", q.clicks)
	}
	q.filePath = path
	q.fileSD = fromSD
	q.clicks = 0
}

// SubmitClick adds one pending click sound. Rapid repeated clicks coalesce
// into a backlog counter; individual click identity is not tracked since
// every click resolves to the same asset.
func (q *Queue) SubmitClick() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.clicks++
}

// Next removes and returns the highest-priority pending request. A pending
// file always wins over clicks. The boolean is false when the queue is empty.
func (q *Queue) Next() (Request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.filePath != "" {
		req := Request{Path: q.filePath, FromSD: q.fileSD}
		q.filePath = ""
		q.fileSD = false
		return req, true
	}
	if q.clicks > 0 {
		q.clicks--
		return Request{Path: q.clickPath, Click: true}, true
	}
	return Request{}, false
}

// Pending reports whether any work is queued.
func (q *Queue) Pending() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.filePath != "" || q.clicks > 0
}

// Clear drops the pending file and all pending clicks in one step.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.filePath = ""
	q.fileSD = false
	q.clicks = 0
}
