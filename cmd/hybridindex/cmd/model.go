package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newModelCmd creates the model command group
func newModelCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Manage the local embedding model",
	}
	cmd.AddCommand(newModelStatusCmd(a))
	cmd.AddCommand(newModelInstallCmd(a))
	cmd.AddCommand(newModelClearCmd(a))
	return cmd
}

func newModelStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the embedding model is installed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			models := a.workspaces().Models()
			installed, err := models.Installed(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to query model runtime: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Model:     %s\nInstalled: %t\nState:     %s\n",
				a.cfg.Embeddings.OllamaModel, installed, models.DownloadState())
			return err
		},
	}
}

func newModelInstallCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Download the embedding model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Installing %s...\n", a.cfg.Embeddings.OllamaModel)
			if err := a.workspaces().Models().GetOrInstallModel(cmd.Context()); err != nil {
				return fmt.Errorf("failed to install model: %w", err)
			}
			_, err := fmt.Fprintln(out, "Model ready")
			return err
		},
	}
}

func newModelClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the downloaded embedding model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.workspaces().Models().ClearModel(cmd.Context()); err != nil {
				return fmt.Errorf("failed to clear model: %w", err)
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "Model removed")
			return err
		},
	}
}
