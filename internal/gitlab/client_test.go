package gitlab

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type createCall struct {
	Path string
	Body map[string]string
}

type fakeGitLab struct {
	mu       sync.Mutex
	existing map[string]bool
	branches map[string]bool // when set, other branches are 404
	calls    []createCall
	tokens   []string
	hits     int
	status   int
}

func (f *fakeGitLab) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits++
	f.tokens = append(f.tokens, r.Header.Get("PRIVATE-TOKEN"))

	w.Header().Set("Content-Type", "application/json")

	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(`{"message":"boom"}`))
		return
	}

	const filesPrefix = "/api/v4/projects/42/repository/files/"
	switch {
	case r.Method == http.MethodGet && (r.URL.Path == "/api/v4/projects/42" || r.URL.Path == "/api/v4/projects/group/demo"):
		_, _ = w.Write([]byte(`{"id":42,"name":"demo","path_with_namespace":"group/demo","default_branch":"main","web_url":"https://gitlab.example.com/group/demo"}`))

	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/v4/projects/"):
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"404 Project Not Found"}`))

	case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, filesPrefix):
		path := strings.TrimPrefix(r.URL.Path, filesPrefix)
		body := map[string]string{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.calls = append(f.calls, createCall{Path: path, Body: body})

		if f.branches != nil && !f.branches[body["branch"]] {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"404 Branch Not Found"}`))
			return
		}
		if f.existing[path] {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message":"A file with this name already exists"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"file_path":"` + path + `","branch":"` + body["branch"] + `"}`))

	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"404 Not Found"}`))
	}
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL, "glpat-test")
	require.NoError(t, err)
	return client
}

func TestClient_ResolveProject(t *testing.T) {
	fake := &fakeGitLab{}
	client := newTestClient(t, fake)

	for _, id := range []string{"42", "group/demo"} {
		p, err := client.ResolveProject(context.Background(), id)
		require.NoError(t, err, id)
		assert.Equal(t, 42, p.ID)
		assert.Equal(t, "group/demo", p.PathWithNamespace)
		assert.Equal(t, "main", p.DefaultBranch)
	}
	assert.Equal(t, "glpat-test", fake.tokens[0])
}

func TestClient_ResolveProjectNotFound(t *testing.T) {
	client := newTestClient(t, &fakeGitLab{})

	_, err := client.ResolveProject(context.Background(), "999")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "Project Not Found")
}

func TestClient_CreateFile(t *testing.T) {
	fake := &fakeGitLab{}
	client := newTestClient(t, fake)

	err := client.CreateFile(context.Background(), 42, CreateFileRequest{
		Path:          "sub/b.txt",
		Branch:        "main",
		Content:       "YmV0YQ==",
		CommitMessage: "Upload file",
		Encoding:      "base64",
	})
	require.NoError(t, err)

	require.Len(t, fake.calls, 1)
	call := fake.calls[0]
	assert.Equal(t, "sub/b.txt", call.Path)
	assert.Equal(t, "main", call.Body["branch"])
	assert.Equal(t, "YmV0YQ==", call.Body["content"])
	assert.Equal(t, "Upload file", call.Body["commit_message"])
	assert.Equal(t, "base64", call.Body["encoding"])
}

func TestClient_CreateFileAlreadyExists(t *testing.T) {
	fake := &fakeGitLab{existing: map[string]bool{"a.txt": true}}
	client := newTestClient(t, fake)

	err := client.CreateFile(context.Background(), 42, CreateFileRequest{Path: "a.txt", Branch: "main", Content: "YQ==", CommitMessage: "Upload file", Encoding: "base64"})

	var rerr *RemoteCreateError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, http.StatusBadRequest, rerr.StatusCode)
	assert.Contains(t, rerr.Message, "already exists")
	assert.Equal(t, "a.txt", rerr.Path)
}

func TestClient_CreateFileNotFound(t *testing.T) {
	fake := &fakeGitLab{branches: map[string]bool{"main": true}}
	client := newTestClient(t, fake)

	err := client.CreateFile(context.Background(), 42, CreateFileRequest{Path: "a.txt", Branch: "release", Content: "YQ==", CommitMessage: "Upload file", Encoding: "base64"})

	var rerr *RemoteCreateError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, http.StatusNotFound, rerr.StatusCode)
	assert.Equal(t, "a.txt", rerr.Path)
	assert.Contains(t, rerr.Message, "Not Found")
}

func TestUploader_MissingBranchIsReportedPerFile(t *testing.T) {
	fake := &fakeGitLab{branches: map[string]bool{"main": true}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	root := newTree(t, map[string]string{"a.txt": "alpha", "b.txt": "beta"})
	target := UploadTarget{BaseURL: srv.URL, Token: "glpat-test", ProjectID: "42", Root: root, Branch: "release"}
	rec := &recorder{}

	summary, err := NewUploader(nil).Run(context.Background(), target, rec)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, []int{50, 100}, rec.progress)

	errs := rec.tagged(TagError)
	require.Len(t, errs, 2)
	for _, l := range errs {
		assert.Contains(t, l.Message, "404 Not Found")
	}
	var rerr *RemoteCreateError
	assert.ErrorAs(t, summary.Files[0].Err, &rerr)
}

func TestClient_NoRetryOnServerError(t *testing.T) {
	fake := &fakeGitLab{status: http.StatusBadGateway}
	client := newTestClient(t, fake)

	err := client.CreateFile(context.Background(), 42, CreateFileRequest{Path: "a.txt", Branch: "main", Content: "YQ=="})
	var rerr *RemoteCreateError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, http.StatusBadGateway, rerr.StatusCode)
	assert.Equal(t, 1, fake.hits)
}

func TestUploader_AgainstHTTPServer(t *testing.T) {
	fake := &fakeGitLab{existing: map[string]bool{"a.txt": true}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	root := newTree(t, map[string]string{"a.txt": "alpha", "sub/b.txt": "beta"})
	target := UploadTarget{BaseURL: srv.URL, Token: "glpat-test", ProjectID: "42", Root: root}
	rec := &recorder{}

	summary, err := NewUploader(nil).Run(context.Background(), target, rec)
	require.NoError(t, err)

	assert.Equal(t, []int{50, 100}, rec.progress)
	assert.Equal(t, 1, summary.Uploaded)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, fake.calls, 2)
	assert.Equal(t, "a.txt", fake.calls[0].Path)
	assert.Equal(t, "sub/b.txt", fake.calls[1].Path)
}
