package cmd

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/takeshy/gitlabuploader/internal/history"
)

var (
	historyLimit int
	historyFiles string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past upload sessions",
	Long: `List recent upload sessions, newest first.

Use --files with a session ID (or a unique prefix of one) to list the files
attempted in that session.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of sessions to show")
	historyCmd.Flags().StringVar(&historyFiles, "files", "", "Show the files of one session")
	rootCmd.AddCommand(historyCmd)
}

func openHistory() (*history.Store, error) {
	sm, err := newSettingsManager()
	if err != nil {
		return nil, err
	}
	store, err := history.Open(filepath.Join(sm.Dir(), history.FileName), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return store, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func runHistory(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	if historyFiles != "" {
		return listSessionFiles(cmd, store, historyFiles)
	}

	recs, err := store.List(historyLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(recs) == 0 {
		fmt.Fprintln(out, "No upload sessions recorded")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tPROJECT\tSTATUS\tUPLOADED\tFAILED\tDIRECTORY")
	fmt.Fprintln(w, "--\t-------\t-------\t------\t--------\t------\t---------")
	for _, r := range recs {
		project := r.Project
		if project == "" {
			project = r.ProjectID
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\t%d\t%s\n",
			shortID(r.ID),
			humanize.Time(r.StartedAt),
			project,
			r.Status,
			r.Uploaded, r.Total,
			r.Failed,
			r.Root,
		)
	}
	return w.Flush()
}

func listSessionFiles(cmd *cobra.Command, store *history.Store, prefix string) error {
	rec, err := store.Get(prefix)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Session %s (%s) uploaded %s to %s\n", rec.ID, rec.Status, rec.Root, rec.ProjectID)
	if rec.Error != "" {
		fmt.Fprintf(out, "Error: %s\n", rec.Error)
	}
	if len(rec.Files) == 0 {
		fmt.Fprintln(out, "No files were attempted")
		return nil
	}
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tSIZE\tCHECKSUM\tRESULT")
	fmt.Fprintln(w, "----\t----\t--------\t------")
	for _, f := range rec.Files {
		result := "ok"
		if f.Error != "" {
			result = f.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", f.Path, humanize.Bytes(uint64(f.Size)), f.Checksum, result)
	}
	return w.Flush()
}
