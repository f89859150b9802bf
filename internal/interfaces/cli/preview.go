package cli

import (
	"fmt"

	"github.com/fichesante/backend/internal/domain/document"
	"github.com/spf13/cobra"
)

// PreviewOptions holds flags for the preview command.
type PreviewOptions struct {
	Variant string
	Print   bool
	Open    bool
	Output  string
}

// NewPreviewCommand creates the preview command.
func NewPreviewCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PreviewOptions{}

	cmd := &cobra.Command{
		Use:   "preview <id>",
		Short: "Write or open the printable HTML version of a document",
		Long: `Write the self-contained printable HTML of one document variant.

With --open the page is shown in a Chrome window instead and the command
waits for Ctrl-C; --print also opens the print dialog. When no window can
be opened the HTML is written to disk as usual.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreview(cmd, rootOpts, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Variant, "variant", string(document.OnePage), "variant to preview (1page|4pages)")
	cmd.Flags().BoolVar(&opts.Print, "print", false, "trigger the print dialog")
	cmd.Flags().BoolVar(&opts.Open, "open", false, "open the page in Chrome")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (default {id}-{variant}.html, - for stdout)")

	return cmd
}

func runPreview(cmd *cobra.Command, rootOpts *RootOptions, opts *PreviewOptions, id string) error {
	v, err := document.ParseVariant(opts.Variant)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid variant", err)
	}

	st, err := newStack(rootOpts, stackOptions{withOpener: opts.Open})
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	if opts.Open {
		var opened bool
		if opts.Print {
			opened = st.service.Print(ctx, id, v)
		} else {
			opened = st.service.Preview(ctx, id, v)
		}
		if opened {
			fmt.Fprintln(cmd.ErrOrStderr(), "printable version opened; press Ctrl-C to close it")
			<-ctx.Done()
			return nil
		}
		fmt.Fprintln(cmd.ErrOrStderr(), "could not open a browser window; writing the printable HTML instead")
	}

	path := opts.Output
	if path == "" {
		path = fmt.Sprintf("%s-%s.html", id, v)
	}
	html := st.service.PreviewHTML(ctx, id, v, opts.Print)
	n, err := writeOutput(cmd.OutOrStdout(), path, []byte(html))
	if err != nil {
		return err
	}
	if path != "-" {
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", path, n)
	}
	return nil
}
