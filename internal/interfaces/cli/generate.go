package cli

import (
	"errors"
	"fmt"
	"io"

	docapp "github.com/fichesante/backend/internal/application/document"
	"github.com/fichesante/backend/internal/domain/document"
	"github.com/spf13/cobra"
)

// GenerateOptions holds flags for the generate command.
type GenerateOptions struct {
	Variant string
	Output  string
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GenerateOptions{}

	cmd := &cobra.Command{
		Use:   "generate <id>",
		Short: "Generate the PDF of one document",
		Long: `Generate the PDF variant of one document.

The file is written to {id}-{variant}.pdf unless --output is given;
"--output -" writes the PDF to stdout. When generation fails the
diagnostic is printed to stderr and the command exits with code 1.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, rootOpts, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Variant, "variant", string(document.OnePage), "variant to generate (1page|4pages)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (default {id}-{variant}.pdf, - for stdout)")

	return cmd
}

func runGenerate(cmd *cobra.Command, rootOpts *RootOptions, opts *GenerateOptions, id string) error {
	v, err := document.ParseVariant(opts.Variant)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid variant", err)
	}

	st, err := newStack(rootOpts, stackOptions{})
	if err != nil {
		return err
	}
	defer st.Close()

	resp, err := st.service.Download(cmd.Context(), id, v)
	if err != nil {
		return generationFailure(cmd.ErrOrStderr(), id, v, err)
	}

	path := opts.Output
	if path == "" {
		path = resp.FileName
	}
	n, err := writeOutput(cmd.OutOrStdout(), path, resp.Artifact.Bytes())
	if err != nil {
		return err
	}
	if path != "-" {
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes, %s)\n", path, n, resp.Artifact.Fingerprint())
	}
	return nil
}

// generationFailure maps a Download error to an exit code. Failed
// generations print their diagnostic and point at the HTML fallback.
func generationFailure(stderr io.Writer, id string, v document.Variant, err error) error {
	if docapp.IsNotFound(err) {
		return WrapExitError(ExitCommandError, "unknown document "+id, err)
	}
	var genErr *document.GenerationError
	if !errors.As(err, &genErr) {
		return WrapExitError(ExitFailure, "generation failed", err)
	}
	fmt.Fprintln(stderr, genErr.Diagnostic().JSON())
	fmt.Fprintf(stderr, "the PDF could not be generated; print the HTML version instead:\n  docgen preview %s --variant %s --open --print\n", id, v)
	return WrapExitError(ExitFailure, "generation failed", err)
}
