package gitlab

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRemote struct {
	mu         sync.Mutex
	resolveErr error
	rejects    map[string]error
	onCreate   func(req CreateFileRequest)
	created    []CreateFileRequest
	projectIDs []int
}

func (f *fakeRemote) ResolveProject(ctx context.Context, id string) (*Project, error) {
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	return &Project{ID: 42, PathWithNamespace: "group/" + id}, nil
}

func (f *fakeRemote) CreateFile(ctx context.Context, projectID int, req CreateFileRequest) error {
	f.mu.Lock()
	f.created = append(f.created, req)
	f.projectIDs = append(f.projectIDs, projectID)
	f.mu.Unlock()

	if f.onCreate != nil {
		f.onCreate(req)
	}
	if err, ok := f.rejects[req.Path]; ok {
		return err
	}
	return nil
}

func (f *fakeRemote) paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.created))
	for i, c := range f.created {
		out[i] = c.Path
	}
	return out
}

type recorder struct {
	logs     []LogLine
	progress []int
	order    []string
}

func (r *recorder) Log(line LogLine) {
	r.logs = append(r.logs, line)
	r.order = append(r.order, "log")
}

func (r *recorder) Progress(percent int) {
	r.progress = append(r.progress, percent)
	r.order = append(r.order, "progress")
}

func (r *recorder) tagged(tag Tag) []LogLine {
	var out []LogLine
	for _, l := range r.logs {
		if l.Tag == tag {
			out = append(out, l)
		}
	}
	return out
}

func newTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func newTarget(root string) UploadTarget {
	return UploadTarget{
		BaseURL:   "https://gitlab.example.com",
		Token:     "glpat-secret",
		ProjectID: "demo",
		Root:      root,
	}
}

func fakeConnector(remote Remote) Connector {
	return func(baseURL, token string) (Remote, error) { return remote, nil }
}

func TestRun_TwoFiles(t *testing.T) {
	root := newTree(t, map[string]string{"a.txt": "alpha", "sub/b.txt": "beta"})
	remote := &fakeRemote{}
	rec := &recorder{}

	summary, err := NewUploader(fakeConnector(remote)).Run(context.Background(), newTarget(root), rec)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.txt", "sub/b.txt"}, remote.paths())
	assert.Equal(t, []int{50, 100}, rec.progress)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 2, summary.Uploaded)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, "group/demo", summary.Project)

	for i, req := range remote.created {
		assert.Equal(t, DefaultBranch, req.Branch)
		assert.Equal(t, DefaultCommitMessage, req.CommitMessage)
		assert.Equal(t, "base64", req.Encoding)
		assert.Equal(t, 42, remote.projectIDs[i])
	}

	decoded, err := base64.StdEncoding.DecodeString(remote.created[1].Content)
	require.NoError(t, err)
	assert.Equal(t, "beta", string(decoded))

	success := rec.tagged(TagSuccess)
	require.Len(t, success, 1)
	assert.Equal(t, rec.logs[len(rec.logs)-1], success[0])
}

func TestRun_ProgressFollowsEachAttempt(t *testing.T) {
	files := map[string]string{}
	for _, name := range []string{"1", "2", "3", "4", "5", "6", "7"} {
		files[name+".txt"] = name
	}
	root := newTree(t, files)
	rec := &recorder{}

	_, err := NewUploader(fakeConnector(&fakeRemote{})).Run(context.Background(), newTarget(root), rec)
	require.NoError(t, err)

	require.Len(t, rec.progress, 7)
	for k, p := range rec.progress {
		assert.Equal(t, Percent(k+1, 7), p)
		if k > 0 {
			assert.GreaterOrEqual(t, p, rec.progress[k-1])
		}
	}
	assert.Equal(t, 100, rec.progress[6])

	// every progress event follows the log line of its own attempt
	for i, kind := range rec.order {
		if kind == "progress" {
			assert.Equal(t, "log", rec.order[i-1])
		}
	}
}

func TestRun_ProjectResolutionFailure(t *testing.T) {
	root := newTree(t, map[string]string{"a.txt": "a"})
	remote := &fakeRemote{resolveErr: errors.New("404 {message: 404 Project Not Found}")}
	rec := &recorder{}

	_, err := NewUploader(fakeConnector(remote)).Run(context.Background(), newTarget(root), rec)

	var perr *ProjectResolutionError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "demo", perr.ProjectID)
	assert.Empty(t, remote.paths())
	assert.Empty(t, rec.progress)
	require.Len(t, rec.logs, 1)
	assert.Equal(t, TagError, rec.logs[0].Tag)
	assert.Contains(t, rec.logs[0].Message, "Project Not Found")
}

func TestRun_RejectedFileDoesNotStopSession(t *testing.T) {
	root := newTree(t, map[string]string{"a.txt": "a", "b.txt": "b", "c.txt": "c", "d.txt": "d"})
	remote := &fakeRemote{rejects: map[string]error{
		"b.txt": &RemoteCreateError{Path: "b.txt", StatusCode: 400, Message: "A file with this name already exists"},
	}}
	rec := &recorder{}

	summary, err := NewUploader(fakeConnector(remote)).Run(context.Background(), newTarget(root), rec)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.txt", "b.txt", "c.txt", "d.txt"}, remote.paths())
	assert.Equal(t, []int{25, 50, 75, 100}, rec.progress)
	assert.Equal(t, 3, summary.Uploaded)
	assert.Equal(t, 1, summary.Failed)

	errs := rec.tagged(TagError)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "already exists")

	var rerr *RemoteCreateError
	require.ErrorAs(t, summary.Files[1].Err, &rerr)
	assert.Equal(t, 400, rerr.StatusCode)
}

func TestRun_TransportErrorIsPerFile(t *testing.T) {
	root := newTree(t, map[string]string{"a.txt": "a", "b.txt": "b"})
	remote := &fakeRemote{rejects: map[string]error{"a.txt": errors.New("connection reset by peer")}}
	rec := &recorder{}

	summary, err := NewUploader(fakeConnector(remote)).Run(context.Background(), newTarget(root), rec)
	require.NoError(t, err)

	var uerr *UnclassifiedError
	require.ErrorAs(t, summary.Files[0].Err, &uerr)
	assert.Equal(t, []string{"a.txt", "b.txt"}, remote.paths())
	assert.Equal(t, []int{50, 100}, rec.progress)
}

func TestRun_UnreadableFileContinues(t *testing.T) {
	root := newTree(t, map[string]string{"a.txt": "a", "b.txt": "b", "c.txt": "c"})
	remote := &fakeRemote{}
	// the file disappears between enumeration and read
	remote.onCreate = func(req CreateFileRequest) {
		if req.Path == "a.txt" {
			_ = os.Remove(filepath.Join(root, "b.txt"))
		}
	}
	rec := &recorder{}

	summary, err := NewUploader(fakeConnector(remote)).Run(context.Background(), newTarget(root), rec)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.txt", "c.txt"}, remote.paths())
	assert.Equal(t, []int{33, 67, 100}, rec.progress)
	assert.Equal(t, 1, summary.Failed)

	var ferr *FileReadError
	require.ErrorAs(t, summary.Files[1].Err, &ferr)
	assert.Equal(t, "b.txt", ferr.Path)
}

func TestRun_EmptyDirectory(t *testing.T) {
	remote := &fakeRemote{}
	rec := &recorder{}

	_, err := NewUploader(fakeConnector(remote)).Run(context.Background(), newTarget(t.TempDir()), rec)
	assert.ErrorIs(t, err, ErrNoFiles)
	assert.Empty(t, remote.paths())
	assert.Empty(t, rec.progress)

	errs := rec.tagged(TagError)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "No files found")
}

func TestRun_MissingRoot(t *testing.T) {
	rec := &recorder{}
	_, err := NewUploader(fakeConnector(&fakeRemote{})).Run(context.Background(), newTarget(filepath.Join(t.TempDir(), "nope")), rec)

	var eerr *EnumerationError
	require.ErrorAs(t, err, &eerr)
	assert.Len(t, rec.tagged(TagError), 1)
	assert.Empty(t, rec.progress)
}

func TestRun_UnreadableSubdirectoryIsLoggedAndSkipped(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced")
	}

	root := newTree(t, map[string]string{"a.txt": "a", "locked/x.txt": "x"})
	locked := filepath.Join(root, "locked")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	remote := &fakeRemote{}
	rec := &recorder{}
	summary, err := NewUploader(fakeConnector(remote)).Run(context.Background(), newTarget(root), rec)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Uploaded)
	assert.Equal(t, []string{"a.txt"}, remote.paths())

	errs := rec.tagged(TagError)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "Skipped locked")
	assert.Equal(t, []int{100}, rec.progress)
}

func TestRun_ConfigurationError(t *testing.T) {
	called := false
	connect := func(baseURL, token string) (Remote, error) {
		called = true
		return &fakeRemote{}, nil
	}

	rec := &recorder{}
	_, err := NewUploader(connect).Run(context.Background(), UploadTarget{BaseURL: "https://gitlab.com"}, rec)

	var cerr *ConfigurationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, []string{"token", "project ID", "directory"}, cerr.Missing)
	assert.False(t, called)
	assert.Empty(t, rec.logs)
}

func TestRun_ConnectFailure(t *testing.T) {
	connect := func(baseURL, token string) (Remote, error) {
		return nil, errors.New("bad url")
	}
	rec := &recorder{}
	_, err := NewUploader(connect).Run(context.Background(), newTarget(t.TempDir()), rec)

	var uerr *UnclassifiedError
	require.ErrorAs(t, err, &uerr)
	assert.Len(t, rec.logs, 1)
}

func TestRun_Cancelled(t *testing.T) {
	root := newTree(t, map[string]string{"a.txt": "a", "b.txt": "b", "c.txt": "c"})
	ctx, cancel := context.WithCancel(context.Background())
	remote := &fakeRemote{onCreate: func(req CreateFileRequest) {
		if req.Path == "a.txt" {
			cancel()
		}
	}}
	rec := &recorder{}

	_, err := NewUploader(fakeConnector(remote)).Run(ctx, newTarget(root), rec)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"a.txt"}, remote.paths())
	assert.Equal(t, []int{33}, rec.progress)
	assert.Empty(t, rec.tagged(TagSuccess))
}

func TestRun_CustomBranchAndExclude(t *testing.T) {
	root := newTree(t, map[string]string{"keep.txt": "k", "drop.log": "d"})
	remote := &fakeRemote{}
	target := newTarget(root)
	target.Branch = "uploads"
	target.CommitMessage = "Sync files"
	target.Exclude = []string{`\.log$`}

	_, err := NewUploader(fakeConnector(remote)).Run(context.Background(), target, &recorder{})
	require.NoError(t, err)
	require.Len(t, remote.created, 1)
	assert.Equal(t, "uploads", remote.created[0].Branch)
	assert.Equal(t, "Sync files", remote.created[0].CommitMessage)
}

func TestPercent(t *testing.T) {
	tests := []struct {
		done, total, want int
	}{
		{1, 2, 50},
		{2, 2, 100},
		{1, 3, 33},
		{2, 3, 67},
		{1, 8, 13},
		{0, 5, 0},
		{1, 0, 0},
		{999, 1000, 100},
		{1, 1000, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Percent(tt.done, tt.total), "Percent(%d, %d)", tt.done, tt.total)
	}
}
