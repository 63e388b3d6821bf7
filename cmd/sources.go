package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/smazurov/camwall/internal/directory"
	"github.com/smazurov/camwall/internal/video"
	"github.com/spf13/cobra"
)

// CreateSourcesCmd creates the sources command.
func CreateSourcesCmd() *cobra.Command {
	opts := &clientOptions{}
	var size string

	cmd := &cobra.Command{
		Use:   "sources [camera-id]",
		Short: "Show how a camera's source templates expand",
		Long: `Expands every source template of the camera's encoder in order and reports whether ` +
			`the selected transport can play each one. The first accepted source is what a stream request uses.`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			if err := opts.load(c); err != nil {
				return err
			}
			sz, err := video.ParseSize(size)
			if err != nil {
				return err
			}
			store, err := opts.openDirectory()
			if err != nil {
				return err
			}
			t, err := opts.transport()
			if err != nil {
				return err
			}

			candidates, ok := store.Sources(video.NewRequest(args[0], video.WithSize(sz)), t.Accepts)
			if !ok {
				return fmt.Errorf("camera %q is not in %s", args[0], opts.DirectoryFile)
			}
			return printSources(c.OutOrStdout(), t.Name(), candidates)
		},
	}
	opts.bind(cmd)
	cmd.Flags().StringVar(&size, "size", "medium", "Resolution hint (small, medium, large)")
	return cmd
}

func printSources(w io.Writer, transport string, candidates []directory.Candidate) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "TEMPLATE\t%s\tSOURCE\n", transport)
	selected := false
	for _, c := range candidates {
		mark := "no"
		if c.Accepted {
			mark = "yes"
			if !selected {
				mark = "selected"
				selected = true
			}
		}
		source := c.Source
		if c.Skipped != "" {
			source = "(" + c.Skipped + ")"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Template, mark, source)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if !selected {
		fmt.Fprintln(w, "no usable source")
	}
	return nil
}
