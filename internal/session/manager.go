package session

import (
	"context"
	"sync"

	"github.com/asaskevich/EventBus"
	"github.com/takeshy/gitlabuploader/internal/events"
	"github.com/takeshy/gitlabuploader/internal/gitlab"
	"github.com/takeshy/gitlabuploader/internal/logging"
)

// Manager owns the single active session
type Manager struct {
	uploader *gitlab.Uploader
	bus      EventBus.Bus
	log      *logging.Logger

	mu     sync.Mutex
	active *Session
}

// NewManager creates a session manager. A nil bus uses events.GlobalBus.
func NewManager(uploader *gitlab.Uploader, bus EventBus.Bus, log *logging.Logger) *Manager {
	if bus == nil {
		bus = events.GlobalBus
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Manager{
		uploader: uploader,
		bus:      bus,
		log:      log,
	}
}

// Start validates target, stops any running session and waits for it to
// exit, then starts a new one. The returned session outlives ctx only if
// ctx is not cancelled; pass context.Background for detached sessions.
func (m *Manager) Start(ctx context.Context, target gitlab.UploadTarget) (*Session, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		m.log.Debugf("stopping session %s", m.active.ID())
		m.active.Stop()
	}

	s := newSession(target)
	started := events.SessionStarted{
		ID:        s.ID(),
		BaseURL:   target.BaseURL,
		ProjectID: target.ProjectID,
		Root:      target.Root,
		StartedAt: s.StartedAt(),
	}

	m.active = s
	m.bus.Publish(events.TopicSessionStarted, started)
	m.log.Info().Str("session", s.ID()).Str("project", target.ProjectID).Str("root", target.Root).Msg("upload session started")

	s.start(ctx, m.uploader, func(s *Session) {
		summary, err := s.Result()
		m.log.Info().Str("session", s.ID()).Int("uploaded", summary.Uploaded).Int("failed", summary.Failed).AnErr("error", err).Msg("upload session finished")
		m.bus.Publish(events.TopicSessionFinished, events.SessionFinished{
			SessionStarted: started,
			Summary:        summary,
			Err:            err,
			FinishedAt:     s.FinishedAt(),
		})
	})

	return s, nil
}

// Active returns the current session, which may already have finished
func (m *Manager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Stop stops the active session, if any, and waits for it
func (m *Manager) Stop() {
	m.mu.Lock()
	s := m.active
	m.mu.Unlock()

	if s != nil {
		s.Stop()
	}
}
