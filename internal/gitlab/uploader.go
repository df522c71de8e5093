package gitlab

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/takeshy/gitlabuploader/internal/fileutil"
)

// Tag selects how a log line is displayed
type Tag int

const (
	TagPlain Tag = iota
	TagError
	TagSuccess
)

func (t Tag) String() string {
	switch t {
	case TagError:
		return "error"
	case TagSuccess:
		return "success"
	default:
		return "plain"
	}
}

// LogLine is one user-facing session message
type LogLine struct {
	Tag     Tag
	Message string
	Time    time.Time
}

// Reporter receives session events in order. Implementations may block;
// the uploader does not start the next file until both calls return.
type Reporter interface {
	Log(line LogLine)
	Progress(percent int)
}

// Connector builds a Remote for a base URL and token
type Connector func(baseURL, token string) (Remote, error)

// UploadTarget describes one upload session
type UploadTarget struct {
	BaseURL   string
	Token     string
	ProjectID string
	Root      string

	Branch        string
	CommitMessage string
	Exclude       []string
}

// Validate reports every required field that is empty
func (t UploadTarget) Validate() error {
	var missing []string
	if t.BaseURL == "" {
		missing = append(missing, "GitLab URL")
	}
	if t.Token == "" {
		missing = append(missing, "token")
	}
	if t.ProjectID == "" {
		missing = append(missing, "project ID")
	}
	if t.Root == "" {
		missing = append(missing, "directory")
	}
	if len(missing) > 0 {
		return &ConfigurationError{Missing: missing}
	}
	return nil
}

func (t UploadTarget) withDefaults() UploadTarget {
	if t.Branch == "" {
		t.Branch = DefaultBranch
	}
	if t.CommitMessage == "" {
		t.CommitMessage = DefaultCommitMessage
	}
	return t
}

// FileResult is the outcome of one upload attempt
type FileResult struct {
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum,omitempty"`
	Error    string `json:"error,omitempty"`
	Err      error  `json:"-"`
}

// Summary is the outcome of a session
type Summary struct {
	Project  string       `json:"project,omitempty"`
	Total    int          `json:"total"`
	Uploaded int          `json:"uploaded"`
	Failed   int          `json:"failed"`
	Files    []FileResult `json:"files,omitempty"`
}

// Uploader uploads a directory tree one file at a time
type Uploader struct {
	connect Connector
}

// NewUploader creates a new uploader. A nil connector uses Connect.
func NewUploader(connect Connector) *Uploader {
	if connect == nil {
		connect = Connect
	}
	return &Uploader{connect: connect}
}

// Percent returns round(100*done/total)
func Percent(done, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*done + total) / (2 * total)
}

// Run executes one session. Per-file failures are reported through r and
// do not stop the loop; the returned error is only set when the session
// ended early.
func (u *Uploader) Run(ctx context.Context, target UploadTarget, r Reporter) (summary Summary, err error) {
	if err := target.Validate(); err != nil {
		return summary, err
	}
	target = target.withDefaults()

	defer func() {
		if p := recover(); p != nil {
			err = &UnclassifiedError{Err: fmt.Errorf("panic: %v", p)}
			r.Log(errorLine("An error occurred: %v", err))
		}
	}()

	remote, err := u.connect(target.BaseURL, target.Token)
	if err != nil {
		uerr := &UnclassifiedError{Err: err}
		r.Log(errorLine("An error occurred: %v", err))
		return summary, uerr
	}

	project, err := remote.ResolveProject(ctx, target.ProjectID)
	if err != nil {
		perr := &ProjectResolutionError{ProjectID: target.ProjectID, Err: err}
		r.Log(errorLine("Project ID is invalid or inaccessible: %v", err))
		return summary, perr
	}
	summary.Project = project.PathWithNamespace

	r.Log(plainLine("Counting files..."))
	tasks, err := fileutil.Discover(target.Root, target.Exclude, func(rel string, err error) {
		r.Log(errorLine("Skipped %s: %v", rel, err))
	})
	if err != nil {
		eerr := &EnumerationError{Root: target.Root, Err: err}
		r.Log(errorLine("%v", eerr))
		return summary, eerr
	}
	if len(tasks) == 0 {
		r.Log(errorLine("No files found to upload!"))
		return summary, ErrNoFiles
	}

	summary.Total = len(tasks)
	r.Log(plainLine("Found %d files", summary.Total))

	for i, task := range tasks {
		if ctx.Err() != nil {
			r.Log(plainLine("Upload cancelled"))
			return summary, ctx.Err()
		}

		r.Log(plainLine("Uploading %s...", task.RelPath))
		result := u.uploadFile(ctx, remote, project, target, task)

		if result.Err != nil && ctx.Err() != nil {
			r.Log(plainLine("Upload cancelled"))
			return summary, ctx.Err()
		}

		summary.Files = append(summary.Files, result)
		if result.Err != nil {
			summary.Failed++
			r.Log(errorLine("Upload error: %v", result.Err))
		} else {
			summary.Uploaded++
			r.Log(plainLine("Uploaded %s (%s)", result.Path, humanize.Bytes(uint64(result.Size))))
		}

		r.Progress(Percent(i+1, summary.Total))
	}

	r.Log(successLine("All files uploaded!"))
	return summary, nil
}

// uploadFile reads, encodes and submits a single file
func (u *Uploader) uploadFile(ctx context.Context, remote Remote, project *Project, target UploadTarget, task fileutil.FileTask) FileResult {
	result := FileResult{
		Path: task.RelPath,
		Size: task.Size,
	}

	content, err := os.ReadFile(task.Path)
	if err != nil {
		return result.failed(&FileReadError{Path: task.RelPath, Err: err})
	}
	result.Size = int64(len(content))
	result.Checksum = fileutil.Checksum(content)

	err = remote.CreateFile(ctx, project.ID, CreateFileRequest{
		Path:          task.RelPath,
		Branch:        target.Branch,
		Content:       base64.StdEncoding.EncodeToString(content),
		CommitMessage: target.CommitMessage,
		Encoding:      base64Encoding,
	})
	if err != nil {
		var rerr *RemoteCreateError
		if errors.As(err, &rerr) {
			return result.failed(rerr)
		}
		return result.failed(&UnclassifiedError{Err: fmt.Errorf("%s: %w", task.RelPath, err)})
	}

	return result
}

func (r FileResult) failed(err error) FileResult {
	r.Err = err
	r.Error = err.Error()
	return r
}

func plainLine(format string, args ...any) LogLine {
	return LogLine{Tag: TagPlain, Message: fmt.Sprintf(format, args...), Time: time.Now()}
}

func errorLine(format string, args ...any) LogLine {
	return LogLine{Tag: TagError, Message: fmt.Sprintf(format, args...), Time: time.Now()}
}

func successLine(format string, args ...any) LogLine {
	return LogLine{Tag: TagSuccess, Message: fmt.Sprintf(format, args...), Time: time.Now()}
}
