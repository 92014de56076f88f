// Package cmd provides the terravikctl commands.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

type rootOptions struct {
	output string
}

// Execute runs the CLI
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "terravikctl",
		Short: "Operator tooling for the Terravik storefront",
		Long: `terravikctl runs the storefront engines offline and manages the database schema.

Examples:
  terravikctl plan --area 120 --implantando=false --objetivo verde_intenso --clima ameno \
    --sol pleno --irrigacao semanal --pisoteio medio --nivel amarelado
  terravikctl shipping --cep 01310-100 --subtotal 180 --weight 2.7 -o yaml
  terravikctl bump mock-p1
  terravikctl migrate up`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch strings.ToLower(opts.output) {
			case formatJSON, formatYAML:
				return nil
			default:
				return fmt.Errorf("unsupported output format %q (json, yaml)", opts.output)
			}
		},
	}

	root.PersistentFlags().StringVarP(&opts.output, "output", "o", formatJSON, "output format (json, yaml)")

	root.AddCommand(newPlanCmd(opts))
	root.AddCommand(newShippingCmd(opts))
	root.AddCommand(newBumpCmd(opts))
	root.AddCommand(newMigrateCmd(opts))
	return root
}

// render writes value using the JSON field names in both formats.
func (o *rootOptions) render(w io.Writer, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}

	if strings.ToLower(o.output) == formatYAML {
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return fmt.Errorf("encode output: %w", err)
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	}

	var pretty strings.Builder
	enc := json.NewEncoder(&pretty)
	enc.SetIndent("", "  ")
	if err := enc.Encode(value); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = io.WriteString(w, pretty.String())
	return err
}
