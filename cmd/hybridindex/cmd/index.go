package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/hybridindex/pkg/types"
)

// newIndexCmd creates the index command
func newIndexCmd(a *app) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index the workspace",
		Long:  `Index every supported file of the workspace. Files already indexed with unchanged content are skipped.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := a.workspace()
			if err != nil {
				return err
			}
			st, err := rt.BuildFullIndex(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to index %s: %w", a.root, err)
			}
			return writeStatus(cmd.OutOrStdout(), st, jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output status as JSON")
	return cmd
}

// newRebuildCmd creates the rebuild command
func newRebuildCmd(a *app) *cobra.Command {
	var reason string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Drop the workspace index and build it again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := a.workspace()
			if err != nil {
				return err
			}
			st, err := rt.RebuildWorkspaceIndex(cmd.Context(), reason)
			if err != nil {
				return fmt.Errorf("failed to rebuild %s: %w", a.root, err)
			}
			return writeStatus(cmd.OutOrStdout(), st, jsonOutput)
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "requested from command line", "Reason recorded in the log")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output status as JSON")
	return cmd
}

// newDeleteCmd creates the delete command
func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete",
		Short: "Delete all indexed content of the workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := a.workspace()
			if err != nil {
				return err
			}
			if err := rt.DeleteIndex(cmd.Context()); err != nil {
				return fmt.Errorf("failed to delete index of %s: %w", a.root, err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted index of %s\n", a.root)
			return err
		},
	}
}

// newStatusCmd creates the status command
func newStatusCmd(a *app) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := a.workspace()
			if err != nil {
				return err
			}
			st, err := rt.GetStatus(cmd.Context())
			if err != nil {
				return err
			}
			return writeStatus(cmd.OutOrStdout(), st, jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output status as JSON")
	return cmd
}

// newDiagnosticsCmd creates the diagnostics command
func newDiagnosticsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "diagnostics",
		Short: "Show errored and truncated files, graph size and storage details as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := a.workspace()
			if err != nil {
				return err
			}
			d, err := rt.GetDiagnostics(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), d)
		},
	}
}

func writeStatus(w io.Writer, st types.IndexStatus, jsonOutput bool) error {
	if jsonOutput {
		return printJSON(w, st)
	}
	if st.Disabled {
		_, err := fmt.Fprintln(w, "Indexing is disabled")
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "State:    %s", st.State)
	if st.Paused {
		fmt.Fprintf(&b, " (paused: %s)", st.PauseReason)
	}
	fmt.Fprintf(&b, "\nBackend:  %s\n", st.Backend)
	fmt.Fprintf(&b, "Files:    %d/%d\n", st.IndexedFiles, st.TotalFiles)
	fmt.Fprintf(&b, "Chunks:   %d (%d embedded)\n", st.TotalChunks, st.EmbeddedChunks)
	fmt.Fprintf(&b, "Model:    %s\n", st.ModelDownloadState)
	if st.LastError != "" {
		fmt.Fprintf(&b, "Error:    %s\n", st.LastError)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
