package mcp

import "github.com/takeshy/gitlabuploader/internal/gitlab"

// StartUploadInput represents input for the start_upload tool
type StartUploadInput struct {
	Directory string   `json:"directory" jsonschema:"absolute path of the local directory to upload"`
	URL       string   `json:"url,omitempty" jsonschema:"GitLab base URL (default https://gitlab.com)"`
	Token     string   `json:"token,omitempty" jsonschema:"GitLab access token; saved settings are used when empty"`
	ProjectID string   `json:"project_id,omitempty" jsonschema:"GitLab project ID or path; saved settings are used when empty"`
	Exclude   []string `json:"exclude,omitempty" jsonschema:"regex patterns of relative paths to skip"`
}

// StartUploadOutput represents output from the start_upload tool
type StartUploadOutput struct {
	Success   bool   `json:"success"`
	SessionID string `json:"session_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// UploadStatusInput represents input for the upload_status tool
type UploadStatusInput struct{}

// LogEntry is one session log line
type LogEntry struct {
	Tag     string `json:"tag"`
	Message string `json:"message"`
	Time    string `json:"time"`
}

// UploadStatusOutput represents output from the upload_status tool
type UploadStatusOutput struct {
	SessionID string          `json:"session_id,omitempty"`
	Running   bool            `json:"running"`
	Percent   int             `json:"percent"`
	Logs      []LogEntry      `json:"logs"`
	Summary   *gitlab.Summary `json:"summary,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// StopUploadInput represents input for the stop_upload tool
type StopUploadInput struct{}

// StopUploadOutput represents output from the stop_upload tool
type StopUploadOutput struct {
	Stopped   bool   `json:"stopped"`
	SessionID string `json:"session_id,omitempty"`
}

// GetSettingsInput represents input for the get_settings tool
type GetSettingsInput struct{}

// GetSettingsOutput represents output from the get_settings tool
type GetSettingsOutput struct {
	Token     string `json:"token"`
	ProjectID string `json:"project_id"`
	Path      string `json:"path"`
}

// ClearSettingsInput represents input for the clear_settings tool
type ClearSettingsInput struct{}

// ClearSettingsOutput represents output from the clear_settings tool
type ClearSettingsOutput struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ListHistoryInput represents input for the list_history tool
type ListHistoryInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of sessions (default 20)"`
}

// ListHistoryOutput represents output from the list_history tool
type ListHistoryOutput struct {
	Sessions []HistoryItem `json:"sessions"`
	Total    int           `json:"total"`
}

// HistoryItem represents a past session
type HistoryItem struct {
	ID         string `json:"id"`
	ProjectID  string `json:"project_id"`
	Root       string `json:"root"`
	Status     string `json:"status"`
	Uploaded   int    `json:"uploaded"`
	Failed     int    `json:"failed"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at"`
}
