package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the available documents",
		Long: `List every loaded content record with its category, content version
and the file names of its PDF variants.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, rootOpts)
		},
	}
}

func runList(cmd *cobra.Command, rootOpts *RootOptions) error {
	st, err := newStack(rootOpts, stackOptions{})
	if err != nil {
		return err
	}
	defer st.Close()

	docs := st.service.ListDocuments()
	if rootOpts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), docs)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tCATEGORY\tVERSION\tFILES")
	for _, d := range docs {
		files := make([]string, 0, len(d.Variants))
		for _, v := range d.Variants {
			files = append(files, v.FileName)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", d.ID, d.Title, d.Category, d.ContentVersion, strings.Join(files, ","))
	}
	return w.Flush()
}
