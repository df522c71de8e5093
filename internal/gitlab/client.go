package gitlab

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	gl "gitlab.com/gitlab-org/api/client-go"
)

const (
	DefaultBaseURL       = "https://gitlab.com"
	DefaultBranch        = "main"
	DefaultCommitMessage = "Upload file"
	base64Encoding       = "base64"
)

// Project is the resolved remote project
type Project struct {
	ID                int
	Name              string
	PathWithNamespace string
	DefaultBranch     string
	WebURL            string
}

// CreateFileRequest describes a single "create file" commit
type CreateFileRequest struct {
	Path          string
	Branch        string
	Content       string
	CommitMessage string
	Encoding      string
}

// Remote is the part of the GitLab API the uploader needs
type Remote interface {
	ResolveProject(ctx context.Context, id string) (*Project, error)
	CreateFile(ctx context.Context, projectID int, req CreateFileRequest) error
}

// Client is a GitLab API client
type Client struct {
	api     *gl.Client
	baseURL string
}

// noRetry makes every request a single attempt. Cancellation still wins.
var noRetry retryablehttp.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	return false, nil
}

// NewClient creates a new GitLab API client
func NewClient(baseURL, token string) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	api, err := gl.NewClient(token,
		gl.WithBaseURL(baseURL),
		gl.WithHTTPClient(&http.Client{
			Timeout: 5 * time.Minute,
		}),
		gl.WithCustomRetryMax(0),
		gl.WithCustomRetry(noRetry),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitLab client: %w", err)
	}

	return &Client{api: api, baseURL: baseURL}, nil
}

// Connect is the default Connector
func Connect(baseURL, token string) (Remote, error) {
	return NewClient(baseURL, token)
}

// ResolveProject looks a project up by numeric ID or "group/name" path
func (c *Client) ResolveProject(ctx context.Context, id string) (*Project, error) {
	p, _, err := c.api.Projects.GetProject(id, nil, gl.WithContext(ctx))
	if err != nil {
		if errors.Is(err, gl.ErrNotFound) {
			return nil, fmt.Errorf("%d Project Not Found", http.StatusNotFound)
		}
		return nil, describe(err)
	}

	return &Project{
		ID:                p.ID,
		Name:              p.Name,
		PathWithNamespace: p.PathWithNamespace,
		DefaultBranch:     p.DefaultBranch,
		WebURL:            p.WebURL,
	}, nil
}

// CreateFile commits a new file. A rejected request is returned as
// *RemoteCreateError; transport failures are returned unchanged.
func (c *Client) CreateFile(ctx context.Context, projectID int, req CreateFileRequest) error {
	opt := &gl.CreateFileOptions{
		Branch:        gl.Ptr(req.Branch),
		Content:       gl.Ptr(req.Content),
		CommitMessage: gl.Ptr(req.CommitMessage),
	}
	if req.Encoding != "" {
		opt.Encoding = gl.Ptr(req.Encoding)
	}

	_, _, err := c.api.RepositoryFiles.CreateFile(projectID, req.Path, opt, gl.WithContext(ctx))
	if err == nil {
		return nil
	}

	// client-go drops the body of a 404 and returns a sentinel
	if errors.Is(err, gl.ErrNotFound) {
		return &RemoteCreateError{
			Path:       req.Path,
			StatusCode: http.StatusNotFound,
			Message:    "Not Found (project or branch does not exist)",
		}
	}

	var errResp *gl.ErrorResponse
	if errors.As(err, &errResp) {
		status := 0
		if errResp.Response != nil {
			status = errResp.Response.StatusCode
		}
		return &RemoteCreateError{
			Path:       req.Path,
			StatusCode: status,
			Message:    errResp.Message,
		}
	}
	return err
}

// describe turns an API error response into "<status> <message>"
func describe(err error) error {
	if errors.Is(err, gl.ErrNotFound) {
		return fmt.Errorf("%d Not Found", http.StatusNotFound)
	}
	var errResp *gl.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		return fmt.Errorf("%d %s", errResp.Response.StatusCode, errResp.Message)
	}
	return err
}
