package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/takeshy/gitlabuploader/internal/gitlab"
	"github.com/takeshy/gitlabuploader/internal/settings"
)

func textResult(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf(format, args...)},
		},
	}
}

// handleStartUpload handles the start_upload tool
func (s *Server) handleStartUpload(ctx context.Context, req *mcp.CallToolRequest, input StartUploadInput) (*mcp.CallToolResult, StartUploadOutput, error) {
	output := StartUploadOutput{}

	saved, err := s.config.Settings.Load()
	if err != nil {
		return nil, output, err
	}

	target := gitlab.UploadTarget{
		BaseURL:   firstNonEmpty(input.URL, s.config.BaseURL),
		Token:     firstNonEmpty(input.Token, saved.Token),
		ProjectID: firstNonEmpty(input.ProjectID, saved.ProjectID),
		Root:      input.Directory,
		Exclude:   input.Exclude,
	}
	if err := target.Validate(); err != nil {
		return nil, output, err
	}

	if err := s.config.Settings.Save(settings.Settings{Token: target.Token, ProjectID: target.ProjectID}); err != nil {
		return nil, output, err
	}

	// The session must outlive this tool call, so it is not tied to ctx
	sess, err := s.config.Sessions.Start(context.Background(), target)
	if err != nil {
		output.Error = err.Error()
		return textResult("Upload failed to start: %v", err), output, nil
	}

	s.mu.Lock()
	s.tracker = track(sess)
	s.mu.Unlock()

	output.Success = true
	output.SessionID = sess.ID()
	return textResult("Started upload of '%s' to project '%s' (session %s)", target.Root, target.ProjectID, sess.ID()), output, nil
}

// handleUploadStatus handles the upload_status tool
func (s *Server) handleUploadStatus(ctx context.Context, req *mcp.CallToolRequest, input UploadStatusInput) (*mcp.CallToolResult, UploadStatusOutput, error) {
	output := UploadStatusOutput{Logs: []LogEntry{}}

	s.mu.Lock()
	t := s.tracker
	s.mu.Unlock()

	if t == nil {
		return textResult("No upload has been started"), output, nil
	}

	logs, percent, done := t.snapshot()
	output.SessionID = t.session.ID()
	output.Logs = logs
	output.Percent = percent
	output.Running = !done

	if done {
		summary, err := t.session.Result()
		output.Summary = &summary
		if err != nil {
			output.Error = err.Error()
		}
		return textResult("Upload finished: %d uploaded, %d failed", summary.Uploaded, summary.Failed), output, nil
	}

	return textResult("Upload running: %d%%", percent), output, nil
}

// handleStopUpload handles the stop_upload tool
func (s *Server) handleStopUpload(ctx context.Context, req *mcp.CallToolRequest, input StopUploadInput) (*mcp.CallToolResult, StopUploadOutput, error) {
	output := StopUploadOutput{}

	active := s.config.Sessions.Active()
	if active == nil {
		return textResult("No upload is running"), output, nil
	}

	select {
	case <-active.Done():
		return textResult("Upload %s already finished", active.ID()), output, nil
	default:
	}

	s.config.Sessions.Stop()
	output.Stopped = true
	output.SessionID = active.ID()
	return textResult("Stopped upload %s", active.ID()), output, nil
}

// handleGetSettings handles the get_settings tool
func (s *Server) handleGetSettings(ctx context.Context, req *mcp.CallToolRequest, input GetSettingsInput) (*mcp.CallToolResult, GetSettingsOutput, error) {
	output := GetSettingsOutput{Path: s.config.Settings.Path()}

	saved, err := s.config.Settings.Load()
	if err != nil {
		return nil, output, err
	}
	output.Token = saved.MaskedToken()
	output.ProjectID = saved.ProjectID

	if saved == (settings.Settings{}) {
		return textResult("No saved settings"), output, nil
	}
	return textResult("Project: %s, token: %s", output.ProjectID, output.Token), output, nil
}

// handleClearSettings handles the clear_settings tool
func (s *Server) handleClearSettings(ctx context.Context, req *mcp.CallToolRequest, input ClearSettingsInput) (*mcp.CallToolResult, ClearSettingsOutput, error) {
	output := ClearSettingsOutput{}

	if err := s.config.Settings.Clear(); err != nil {
		output.Error = err.Error()
		return textResult("Failed to clear settings: %v", err), output, nil
	}

	output.Success = true
	return textResult("Settings cleared"), output, nil
}

// handleListHistory handles the list_history tool
func (s *Server) handleListHistory(ctx context.Context, req *mcp.CallToolRequest, input ListHistoryInput) (*mcp.CallToolResult, ListHistoryOutput, error) {
	output := ListHistoryOutput{Sessions: []HistoryItem{}}

	if s.config.History == nil {
		return textResult("History is disabled"), output, nil
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	recs, err := s.config.History.List(limit)
	if err != nil {
		return nil, output, err
	}

	for _, r := range recs {
		output.Sessions = append(output.Sessions, HistoryItem{
			ID:         r.ID,
			ProjectID:  r.ProjectID,
			Root:       r.Root,
			Status:     r.Status,
			Uploaded:   r.Uploaded,
			Failed:     r.Failed,
			StartedAt:  r.StartedAt.Format(time.RFC3339),
			FinishedAt: r.FinishedAt.Format(time.RFC3339),
		})
	}
	output.Total = len(output.Sessions)

	return textResult("Found %d sessions", output.Total), output, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
