package cli

import (
	"fmt"

	docapp "github.com/fichesante/backend/internal/application/document"
	"github.com/fichesante/backend/internal/domain/document"
	"github.com/spf13/cobra"
)

// BatchOptions holds flags for the batch command.
type BatchOptions struct {
	Variant  string
	Category string
	Output   string
}

// BatchSummary is the json output of the batch command
type BatchSummary struct {
	Archive   string                `json:"archive"`
	Bytes     int                   `json:"bytes"`
	Entries   []string              `json:"entries"`
	Succeeded int                   `json:"succeeded"`
	Failures  []docapp.BatchFailure `json:"failures"`
}

// NewBatchCommand creates the batch command.
func NewBatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BatchOptions{}

	cmd := &cobra.Command{
		Use:   "batch <id>...",
		Short: "Package many documents into one zip archive",
		Long: `Generate one variant of every listed document and package the PDFs
into a zip archive named {brand}-{category}-{variant}-{date}.zip.

Documents that fail are left out of the archive and reported; the command
then exits with code 1 after writing the archive of the others.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, rootOpts, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.Variant, "variant", string(document.OnePage), "variant to package (1page|4pages)")
	cmd.Flags().StringVar(&opts.Category, "category", "", "category used in the archive name (default per variant)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (default archive name, - for stdout)")

	return cmd
}

func runBatch(cmd *cobra.Command, rootOpts *RootOptions, opts *BatchOptions, ids []string) error {
	if _, err := document.ParseVariant(opts.Variant); err != nil {
		return WrapExitError(ExitCommandError, "invalid variant", err)
	}

	st, err := newStack(rootOpts, stackOptions{})
	if err != nil {
		return err
	}
	defer st.Close()

	result, err := st.service.PackageZip(cmd.Context(), docapp.PackageZipRequest{
		IDs:      ids,
		Variant:  opts.Variant,
		Category: opts.Category,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "batch rejected", err)
	}

	path := opts.Output
	if path == "" {
		path = result.ArchiveName
	}
	if _, err := writeOutput(cmd.OutOrStdout(), path, result.Archive); err != nil {
		return err
	}

	failures := docapp.ToBatchFailures(result.Job)
	if path != "-" {
		if rootOpts.Format == "json" {
			if err := writeJSON(cmd.OutOrStdout(), BatchSummary{
				Archive:   path,
				Bytes:     len(result.Archive),
				Entries:   result.Entries,
				Succeeded: result.Succeeded(),
				Failures:  failures,
			}); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d of %d documents, %d bytes)\n",
				path, result.Succeeded(), len(ids), len(result.Archive))
		}
	}

	if len(failures) == 0 {
		return nil
	}
	for _, f := range failures {
		fmt.Fprintf(cmd.ErrOrStderr(), "position %d: %s (%s): %s\n",
			f.Position, f.Diagnostic.Slug, f.Diagnostic.Variant, f.Diagnostic.Message)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%d of %d documents failed", len(failures), len(ids)))
}
