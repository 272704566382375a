// Package rules handles the correction rule commands
package rules

import (
	"fmt"
	"os"

	"fjacquet/stmt-import/cmd/common"
	"fjacquet/stmt-import/cmd/root"
	"fjacquet/stmt-import/internal/store"

	"github.com/spf13/cobra"
)

var asYAML bool

// Cmd groups the rules subcommands
var Cmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect correction rules",
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List correction rules, best first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rules, err := root.AppContainer.GetStore().ListRules(root.Context(cmd))
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		switch {
		case asYAML:
			if root.SharedFlags.Output == "" {
				return store.WriteRules(out, rules)
			}
			f, err := os.Create(root.SharedFlags.Output)
			if err != nil {
				return err
			}
			defer f.Close()
			return store.WriteRules(f, rules)
		case root.SharedFlags.JSON:
			return common.WriteJSON(out, root.SharedFlags.Output, rules)
		}

		for _, r := range rules {
			fmt.Fprintf(out, "%-8s %-40q -> %-25s conf=%.2f applied=%d\n",
				r.MatchType, r.DescriptionPattern, r.EntityName, r.Confidence, r.TimesApplied)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().BoolVar(&asYAML, "yaml", false, "Print rules in registry YAML format")
	Cmd.AddCommand(listCmd)
}
