package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/takeshy/gitlabuploader/internal/console"
	"github.com/takeshy/gitlabuploader/internal/events"
	"github.com/takeshy/gitlabuploader/internal/fileutil"
	"github.com/takeshy/gitlabuploader/internal/gitlab"
	"github.com/takeshy/gitlabuploader/internal/history"
	"github.com/takeshy/gitlabuploader/internal/logging"
	"github.com/takeshy/gitlabuploader/internal/session"
	"github.com/takeshy/gitlabuploader/internal/settings"
)

var (
	excludePatterns []string
	dryRun          bool
	branch          string
	commitMessage   string
	plain           bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload <directory>",
	Short: "Upload a directory to a GitLab project",
	Long: `Upload every regular file under a directory to a GitLab project.
Each file becomes one commit that creates it at its path relative to the
directory. Files that already exist in the repository are reported as errors
and the upload continues with the next file.

The token and project ID are saved for the next run before uploading starts.`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().StringArrayVarP(&excludePatterns, "exclude", "e", nil, "Regex patterns to exclude files (can be specified multiple times)")
	uploadCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be uploaded without actually uploading")
	uploadCmd.Flags().StringVarP(&branch, "branch", "b", gitlab.DefaultBranch, "Target branch")
	uploadCmd.Flags().StringVarP(&commitMessage, "message", "m", gitlab.DefaultCommitMessage, "Commit message for each file")
	uploadCmd.Flags().BoolVar(&plain, "plain", false, "Print progress as percentage lines instead of a bar")
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	root := args[0]
	out := cmd.OutOrStdout()

	if dryRun {
		files, err := fileutil.DiscoverFiles(root, excludePatterns)
		if err != nil {
			return fmt.Errorf("failed to discover files: %w", err)
		}
		fmt.Fprintf(out, "Dry run mode - %d files would be uploaded:\n", len(files))
		for _, f := range files {
			fmt.Fprintf(out, "  %s (%s)\n", f.RelPath, humanize.Bytes(uint64(f.Size)))
		}
		return nil
	}

	sm, err := newSettingsManager()
	if err != nil {
		return err
	}

	target, err := resolveTarget(sm, root, console.CanPrompt())
	if err != nil {
		return err
	}
	target.Branch = branch
	target.CommitMessage = commitMessage
	target.Exclude = excludePatterns

	if err := target.Validate(); err != nil {
		return err
	}
	if err := sm.Save(settings.Settings{Token: target.Token, ProjectID: target.ProjectID}); err != nil {
		return err
	}

	log := logging.NewDefault()

	store, err := history.Open(filepath.Join(sm.Dir(), history.FileName), log)
	if err != nil {
		log.Warn().Err(err).Msg("upload history is disabled")
	} else {
		defer store.Close()
		if err := store.Subscribe(events.GlobalBus); err != nil {
			return fmt.Errorf("failed to subscribe history: %w", err)
		}
		defer store.Unsubscribe(events.GlobalBus)
	}

	manager := session.NewManager(gitlab.NewUploader(nil), events.GlobalBus, log)
	sess, err := manager.Start(context.Background(), target)
	if err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			manager.Stop()
		case <-sess.Done():
		}
	}()

	summary, err := console.NewRenderer(out, plain).Render(sess)
	return uploadOutcome(summary, err)
}

// uploadOutcome turns a finished session into the command's exit error.
// An empty directory is not a failure.
func uploadOutcome(summary gitlab.Summary, err error) error {
	switch {
	case errors.Is(err, gitlab.ErrNoFiles):
		return nil
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("upload cancelled after %d of %d files", summary.Uploaded+summary.Failed, summary.Total)
	case err != nil:
		return err
	case summary.Failed > 0:
		failed := make([]string, 0, summary.Failed)
		for _, f := range summary.Files {
			if f.Err != nil {
				failed = append(failed, f.Path)
			}
		}
		return fmt.Errorf("some uploads failed: %s", strings.Join(failed, ", "))
	}
	return nil
}
