package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/neko/internal/domain"
	"github.com/roach88/neko/internal/present"
)

// Call is one recorded presentation call.
type Call struct {
	Method   string
	Location domain.Location
	EventID  string
	Status   domain.Status
	Text     string
	Winners  []string
}

// Recorder is a presentation adapter that records calls instead of rendering.
//
// Handles are "msg-1", "msg-2", ... in Present order. Resolve reports
// present.ErrGone for channels marked with MarkGone and for empty handles.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Recorder struct {
	mu       sync.Mutex
	calls    []Call
	issued   int
	gone     map[string]bool
	fail     map[string]error
	statuses []string
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		gone: make(map[string]bool),
		fail: make(map[string]error),
	}
}

// FailOn makes every later call to method return err. A nil err clears it.
func (r *Recorder) FailOn(method string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.fail, method)
		return
	}
	r.fail[method] = err
}

// MarkGone makes Resolve fail with present.ErrGone for channel.
func (r *Recorder) MarkGone(channel string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gone[channel] = true
}

func (r *Recorder) record(c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail[c.Method]; err != nil {
		return err
	}
	r.calls = append(r.calls, c)
	return nil
}

func (r *Recorder) Present(_ context.Context, loc domain.Location, snap domain.Snapshot) (string, error) {
	r.mu.Lock()
	if err := r.fail["Present"]; err != nil {
		r.mu.Unlock()
		return "", err
	}
	r.issued++
	handle := fmt.Sprintf("msg-%d", r.issued)
	r.mu.Unlock()

	loc.Message = handle
	return handle, r.record(Call{Method: "Present", Location: loc, EventID: snap.Event.ID, Status: snap.Status})
}

func (r *Recorder) Refresh(_ context.Context, loc domain.Location, snap domain.Snapshot) error {
	return r.record(Call{Method: "Refresh", Location: loc, EventID: snap.Event.ID, Status: snap.Status})
}

func (r *Recorder) Finish(_ context.Context, loc domain.Location, snap domain.Snapshot) error {
	return r.record(Call{
		Method:   "Finish",
		Location: loc,
		EventID:  snap.Event.ID,
		Status:   snap.Status,
		Winners:  snap.Winners,
	})
}

func (r *Recorder) Announce(_ context.Context, loc domain.Location, text string) error {
	return r.record(Call{Method: "Announce", Location: loc, Text: text})
}

// Resolve is not recorded.
func (r *Recorder) Resolve(_ context.Context, loc domain.Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail["Resolve"]; err != nil {
		return err
	}
	if r.gone[loc.Channel] || loc.Message == "" {
		return present.ErrGone
	}
	return nil
}

// SetStatus records a presence update.
func (r *Recorder) SetStatus(_ context.Context, mode, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail["SetStatus"]; err != nil {
		return err
	}
	r.statuses = append(r.statuses, mode+": "+text)
	return nil
}

// Calls returns a copy of every recorded call in order.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// CallsOf returns recorded calls to method.
func (r *Recorder) CallsOf(method string) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Announcements returns the text of every Announce call.
func (r *Recorder) Announcements() []string {
	var out []string
	for _, c := range r.CallsOf("Announce") {
		out = append(out, c.Text)
	}
	return out
}

// Statuses returns every SetStatus call as "mode: text".
func (r *Recorder) Statuses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.statuses...)
}
