package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chazu/voxcad/pkg/parts"
)

func newListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the built-in parts and their default parameters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, name := range parts.Names() {
				p, err := parts.New(name)
				if err != nil {
					return err
				}
				params, err := parts.Params(p)
				if err != nil {
					return err
				}
				keys := make([]string, 0, len(params))
				for k := range params {
					keys = append(keys, k)
				}
				sort.Strings(keys)

				var b strings.Builder
				for _, k := range keys {
					fmt.Fprintf(&b, " %s=%g", strings.ReplaceAll(k, "_", "-"), params[k])
				}
				fmt.Fprintf(out, "%-15s%s\n", name, b.String())
			}
			return nil
		},
	}
}
