package events

import (
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/takeshy/gitlabuploader/internal/gitlab"
)

// GlobalBus is the shared event bus for the entire application
var GlobalBus EventBus.Bus

func init() {
	GlobalBus = EventBus.New()
}

// Session lifecycle topics
const (
	TopicSessionStarted  = "session:started"
	TopicSessionFinished = "session:finished"
)

// SessionStarted is published with TopicSessionStarted
type SessionStarted struct {
	ID        string
	BaseURL   string
	ProjectID string
	Root      string
	StartedAt time.Time
}

// SessionFinished is published with TopicSessionFinished
type SessionFinished struct {
	SessionStarted
	Summary    gitlab.Summary
	Err        error
	FinishedAt time.Time
}
