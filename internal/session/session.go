// Package session runs uploads on a background goroutine and hands their
// log and progress events to the presentation layer over two channels.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/takeshy/gitlabuploader/internal/gitlab"
)

// Session is a handle to one running upload.
//
// Logs and Progress are unbuffered and closed when the upload ends. The
// worker blocks on every send, so a consumer that selects over both
// channels observes events in the order they were produced. A consumer
// must drain both channels or call Stop.
type Session struct {
	id        string
	target    gitlab.UploadTarget
	startedAt time.Time

	cancel   context.CancelFunc
	logs     chan gitlab.LogLine
	progress chan int
	done     chan struct{}

	mu         sync.Mutex
	summary    gitlab.Summary
	err        error
	finishedAt time.Time
}

func newSession(target gitlab.UploadTarget) *Session {
	return &Session{
		id:        uuid.NewString(),
		target:    target,
		startedAt: time.Now(),
		logs:      make(chan gitlab.LogLine),
		progress:  make(chan int),
		done:      make(chan struct{}),
	}
}

// start launches the worker. onFinish runs after both channels are closed
// and before Done is closed.
func (s *Session) start(parent context.Context, u *gitlab.Uploader, onFinish func(*Session)) {
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel

	go func() {
		defer close(s.done)
		defer cancel()

		summary, err := u.Run(ctx, s.target, &channelReporter{ctx: ctx, s: s})

		s.mu.Lock()
		s.summary, s.err, s.finishedAt = summary, err, time.Now()
		s.mu.Unlock()

		close(s.logs)
		close(s.progress)

		if onFinish != nil {
			onFinish(s)
		}
	}()
}

func (s *Session) ID() string                  { return s.id }
func (s *Session) Target() gitlab.UploadTarget { return s.target }
func (s *Session) StartedAt() time.Time        { return s.startedAt }
func (s *Session) Logs() <-chan gitlab.LogLine { return s.logs }
func (s *Session) Progress() <-chan int        { return s.progress }
func (s *Session) Done() <-chan struct{}       { return s.done }

// Stop cancels the upload and waits for the worker to exit. Files already
// created on the remote stay there.
func (s *Session) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.done
}

// Wait blocks until the session ends and returns its outcome
func (s *Session) Wait() (gitlab.Summary, error) {
	<-s.done
	return s.Result()
}

// Result returns the outcome so far; it is final once Done is closed
func (s *Session) Result() (gitlab.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary, s.err
}

// FinishedAt is zero until the session ends
func (s *Session) FinishedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finishedAt
}

type channelReporter struct {
	ctx context.Context
	s   *Session
}

func (r *channelReporter) Log(line gitlab.LogLine) {
	select {
	case r.s.logs <- line:
	case <-r.ctx.Done():
	}
}

func (r *channelReporter) Progress(percent int) {
	select {
	case r.s.progress <- percent:
	case <-r.ctx.Done():
	}
}

// Event is one item of a drained session, either a log line or a
// progress value.
type Event struct {
	Log        *gitlab.LogLine
	Percent    int
	IsProgress bool
}

// Drain forwards events from s to fn in order until both channels close
func Drain(s *Session, fn func(Event)) {
	logs, progress := s.Logs(), s.Progress()
	for logs != nil || progress != nil {
		select {
		case line, ok := <-logs:
			if !ok {
				logs = nil
				continue
			}
			fn(Event{Log: &line})
		case p, ok := <-progress:
			if !ok {
				progress = nil
				continue
			}
			fn(Event{Percent: p, IsProgress: true})
		}
	}
}

// Collect drains s and returns every event together with the outcome
func Collect(s *Session) ([]Event, gitlab.Summary, error) {
	var out []Event
	Drain(s, func(ev Event) { out = append(out, ev) })
	summary, err := s.Wait()
	return out, summary, err
}
