// Package entity handles the entity registry commands
package entity

import (
	"fmt"

	"fjacquet/stmt-import/cmd/common"
	"fjacquet/stmt-import/cmd/root"
	"fjacquet/stmt-import/internal/store"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Cmd groups the entity subcommands
var Cmd = &cobra.Command{
	Use:   "entity",
	Short: "Manage the entity registry",
}

var createCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create an entity locally and in Notion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		created, err := root.AppContainer.GetCommitter().CreateEntity(root.Context(cmd), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if root.SharedFlags.JSON {
			return common.WriteJSON(out, root.SharedFlags.Output, created)
		}
		color.New(color.BgGreen, color.FgBlack).Fprintf(out, " %s ", created.EntityName)
		fmt.Fprintf(out, " %s %s\n", created.EntityID, created.EntityURL)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered entities",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		entities, err := root.AppContainer.GetStore().Entities(root.Context(cmd))
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if root.SharedFlags.JSON {
			return common.WriteJSON(out, root.SharedFlags.Output, entities)
		}
		for _, e := range entities {
			fmt.Fprintf(out, "%-40s %s\n", e.Name, e.ID)
		}
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed [registry.yaml]",
	Short: "Load entities, aliases and rules from a registry file",
	Long: `Load a YAML registry. Without an argument the store.seed_file setting is used.
The file is searched in the working directory, ./config and $HOME/.stmt-import.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := root.AppContainer.GetConfig().Store.SeedFile
		if len(args) == 1 {
			name = args[0]
		}
		if name == "" {
			return fmt.Errorf("no registry file given and store.seed_file is not set")
		}
		path, err := store.FindConfigFile(name)
		if err != nil {
			return fmt.Errorf("registry file %s: %w", name, err)
		}
		reg, err := store.LoadRegistryFile(path)
		if err != nil {
			return err
		}
		report, err := root.AppContainer.Seed(root.Context(cmd), reg)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d entities, %d aliases, %d rules from %s\n",
			report.Entities, report.Aliases, report.Rules, path)
		return nil
	},
}

func init() {
	Cmd.AddCommand(createCmd, listCmd, seedCmd)
}
