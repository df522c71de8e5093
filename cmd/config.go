package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/takeshy/gitlabuploader/internal/console"
	"gopkg.in/yaml.v3"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change the saved settings",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the saved settings with the token masked",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sm, err := newSettingsManager()
		if err != nil {
			return err
		}
		s, err := sm.Load()
		if err != nil {
			return err
		}

		view := struct {
			Path      string `yaml:"path"`
			Token     string `yaml:"token"`
			ProjectID string `yaml:"project_id"`
		}{sm.Path(), s.MaskedToken(), s.ProjectID}

		data, err := yaml.Marshal(view)
		if err != nil {
			return fmt.Errorf("failed to encode settings: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Save the --token and/or --project values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if token == "" && projectID == "" {
			return fmt.Errorf("nothing to set. Use --token and/or --project")
		}

		sm, err := newSettingsManager()
		if err != nil {
			return err
		}
		s, err := sm.Load()
		if err != nil {
			return err
		}
		if token != "" {
			s.Token = token
		}
		if projectID != "" {
			s.ProjectID = projectID
		}
		if err := sm.Save(s); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Saved settings to %s\n", sm.Path())
		return nil
	},
}

var configClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the saved token and project ID",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sm, err := newSettingsManager()
		if err != nil {
			return err
		}

		if !configForce && console.CanPrompt() && !console.Confirm("Delete saved settings") {
			fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
			return nil
		}

		if err := sm.Clear(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Settings cleared")
		return nil
	},
}

func init() {
	configClearCmd.Flags().BoolVarP(&configForce, "force", "f", false, "Do not ask for confirmation")

	configCmd.AddCommand(configShowCmd, configSetCmd, configClearCmd)
	rootCmd.AddCommand(configCmd)
}
