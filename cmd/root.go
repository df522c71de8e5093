package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/takeshy/gitlabuploader/internal/console"
	"github.com/takeshy/gitlabuploader/internal/gitlab"
	"github.com/takeshy/gitlabuploader/internal/logging"
	"github.com/takeshy/gitlabuploader/internal/settings"
)

var (
	Version   = "dev"
	gitlabURL string
	token     string
	projectID string
	configDir string
	verbose   bool
)

// asker is swapped out in tests
var asker console.Asker = console.Prompter{}

var rootCmd = &cobra.Command{
	Use:     "gitlabuploader",
	Short:   "Upload a local directory to a GitLab repository",
	Version: Version,
	Long: `gitlabuploader uploads every file under a local directory to a GitLab
repository, one commit per file on the main branch, through the GitLab REST API.

The access token and project ID are remembered in ~/.gitlabuploader/config.json.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.SetVerbose(verbose)
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	defaultURL := gitlab.DefaultBaseURL
	if envURL := os.Getenv("GITLAB_URL"); envURL != "" {
		defaultURL = envURL
	}

	rootCmd.PersistentFlags().StringVarP(&gitlabURL, "url", "u", defaultURL, "GitLab base URL (or set GITLAB_URL env var)")
	rootCmd.PersistentFlags().StringVarP(&token, "token", "t", "", "GitLab access token (or set GITLAB_TOKEN env var)")
	rootCmd.PersistentFlags().StringVarP(&projectID, "project", "p", "", "GitLab project ID or path (or set GITLAB_PROJECT env var)")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Directory for settings and history (default: ~/.gitlabuploader)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug logs")
}

func newSettingsManager() (*settings.Manager, error) {
	sm, err := settings.NewManager(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize settings: %w", err)
	}
	return sm, nil
}

// resolveValue picks the first non-empty of flag, env and saved, then asks
// on the terminal when allowed.
func resolveValue(flagValue, envName, saved, label string, secret, interactive bool) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if v := os.Getenv(envName); v != "" {
		return v, nil
	}
	if saved != "" {
		return saved, nil
	}
	if !interactive {
		return "", nil
	}
	v, err := asker.Ask(label, secret)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", label, err)
	}
	return v, nil
}

// resolveTarget builds an upload target for root from flags, environment,
// saved settings and, on a terminal, prompts.
func resolveTarget(sm *settings.Manager, root string, interactive bool) (gitlab.UploadTarget, error) {
	saved, err := sm.Load()
	if err != nil {
		return gitlab.UploadTarget{}, err
	}
	logging.NewDefault().Debugf("loaded settings from %s", sm.Path())

	target := gitlab.UploadTarget{Root: root}

	target.BaseURL, err = resolveValue(gitlabURL, "GITLAB_URL", "", "GitLab URL", false, interactive)
	if err != nil {
		return target, err
	}
	target.Token, err = resolveValue(token, "GITLAB_TOKEN", saved.Token, "GitLab access token", true, interactive)
	if err != nil {
		return target, err
	}
	target.ProjectID, err = resolveValue(projectID, "GITLAB_PROJECT", saved.ProjectID, "GitLab project ID", false, interactive)
	if err != nil {
		return target, err
	}
	return target, nil
}
