// Package cli implements the docgen command line tool.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/fichesante/backend/internal/infrastructure/config"
	"github.com/fichesante/backend/internal/infrastructure/printing"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ContentDir string
	WithSeed   bool
	Backend    string
	Timeout    time.Duration

	// overridable in tests
	loadConfig func() (*config.Config, error)
	encoder    printing.Encoder
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the docgen CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{loadConfig: config.Load})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	if opts.loadConfig == nil {
		opts.loadConfig = config.Load
	}

	cmd := &cobra.Command{
		Use:   "docgen",
		Short: "docgen - patient information sheets as PDF",
		Long: "Generates the 1-page and 4-page PDF versions of patient information sheets,\n" +
			"packages them into zip archives and writes their printable HTML fallback.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if opts.Backend != "" && !slices.Contains(validBackends, opts.Backend) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid backend %q: must be one of %v", opts.Backend, validBackends))
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ContentDir, "content-dir", "", "directory of content records (default: embedded records)")
	cmd.PersistentFlags().BoolVar(&opts.WithSeed, "with-seed", false, "also load the embedded records when --content-dir is set")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", "", "PDF encoder backend (native|chromedp|wkhtmltopdf)")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 0, "bound for one PDF encode (default from config)")

	// Add subcommands
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewGenerateCommand(opts))
	cmd.AddCommand(NewBatchCommand(opts))
	cmd.AddCommand(NewPreviewCommand(opts))

	return cmd
}

var validBackends = []string{printing.BackendNative, printing.BackendChromedp, printing.BackendWkhtmltopdf}

// Execute runs the root command until it returns or the process is
// interrupted, and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
		return GetExitCode(err)
	}
	return ExitSuccess
}
