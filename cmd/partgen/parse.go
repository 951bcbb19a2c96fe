package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/chazu/voxcad/pkg/command"
)

type parsedField struct {
	Value   float64 `json:"value"`
	Matched bool    `json:"matched"`
	Match   string  `json:"match,omitempty"`
}

type parseOutput struct {
	Normalized string                 `json:"normalized"`
	Parsed     command.Envelope       `json:"parsed"`
	Fields     map[string]parsedField `json:"fields"`
}

func newParseCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "parse COMMAND",
		Short: "Show how a Chinese modelling command is understood",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []command.Option
			if c.cfg.Parser.StrictRadius {
				opts = append(opts, command.WithStrictRadius())
			}
			ex, err := command.NewParser(opts...).Extract(args[0])
			if err != nil {
				return err
			}

			out := parseOutput{
				Normalized: ex.Normalized,
				Parsed:     command.Wrap(ex.Spec),
				Fields:     make(map[string]parsedField, len(ex.Fields)),
			}
			for _, f := range ex.Fields {
				out.Fields[f.Name] = parsedField{Value: f.Value, Matched: f.Match.Matched, Match: f.Match.Text}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(out)
		},
	}
}
