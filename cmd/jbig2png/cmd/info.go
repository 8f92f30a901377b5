package cmd

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func NewInfoCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <file>",
		Short: "list the segments and comments of a JBIG2 stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dec, err := openDecoder(cmd, args[0])
			if err != nil {
				return err
			}
			info := dec.Info()
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "id:           %s\n", dec.ID())
			fmt.Fprintf(w, "organization: %s\n", info.Organization)
			fmt.Fprintf(w, "pages:        %d\n", info.Pages)
			fmt.Fprintf(w, "segments:     %d\n", len(info.Segments))
			for _, c := range dec.Comments() {
				fmt.Fprintf(w, "comment:      %s = %s\n", c.Key, c.Value)
			}
			for _, v := range info.Tolerated {
				fmt.Fprintf(w, "tolerated:    %v\n", v)
			}

			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "\nNUMBER\tTYPE\tPAGE\tLENGTH\tREFERS TO")
			for _, seg := range info.Segments {
				refs := make([]string, len(seg.Refs))
				for i, r := range seg.Refs {
					refs[i] = fmt.Sprint(r)
				}
				fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\n", seg.Number, seg.Type, seg.Page, seg.DataLength, strings.Join(refs, ","))
			}
			return tw.Flush()
		},
	}
	inputFlags(cmd)
	return cmd
}
