package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/victorhg/ralph/unifiedllm"
)

func newModelsCmd(stdout io.Writer) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "models [provider]",
		Short: "List the built-in model catalog",
		Long: `Lists the models ralph knows defaults for. The first model of each
provider is used when no model is configured. Other model names are passed to
the provider unchanged.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := ""
			if len(args) == 1 {
				provider = args[0]
			}
			models := unifiedllm.ListModels(provider)
			if len(models) == 0 {
				return fmt.Errorf("no models known for provider %q", provider)
			}

			if jsonOutput {
				enc := json.NewEncoder(stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(models)
			}

			w := tabwriter.NewWriter(stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "MODEL ID\tPROVIDER\tNAME\tCONTEXT\tDEFAULT")
			fmt.Fprintln(w, "--------\t--------\t----\t-------\t-------")
			for _, m := range models {
				def := ""
				if unifiedllm.DefaultModel(m.Provider) == m.ID {
					def = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", m.ID, m.Provider, m.DisplayName, m.ContextWindow, def)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output the catalog as JSON")
	return cmd
}

func newVersionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of this binary",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(stdout, "ralph %s\n", version)
		},
	}
}
