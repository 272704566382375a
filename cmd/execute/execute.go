// Package execute handles the execute command
package execute

import (
	"fjacquet/stmt-import/cmd/common"
	"fjacquet/stmt-import/cmd/root"
	"fjacquet/stmt-import/internal/models"

	"github.com/spf13/cobra"
)

// Cmd represents the execute command
var Cmd = &cobra.Command{
	Use:   "execute <confirmed.json>",
	Short: "Commit operator-confirmed transactions",
	Long: `Persist confirmed transactions to the local store and mirror them to Notion.
Each transaction is committed independently; failures are reported per item.`,
	Args: cobra.ExactArgs(1),
	RunE: executeFunc,
}

func executeFunc(cmd *cobra.Command, args []string) error {
	ctx := root.Context(cmd)
	sessions := root.AppContainer.GetSessions()

	req, err := common.ReadExecuteRequest(args[0])
	if err != nil {
		return err
	}
	id, err := sessions.ExecuteImport(ctx, req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	s, err := common.WaitForSession(ctx, sessions, id, func(s *models.ImportSession) {
		if !root.SharedFlags.JSON {
			common.PrintProgress(out, s)
		}
	})
	if err != nil {
		return err
	}

	if root.SharedFlags.JSON || root.SharedFlags.Output != "" {
		if err := common.WriteJSON(out, root.SharedFlags.Output, s); err != nil {
			return err
		}
	}
	if !root.SharedFlags.JSON {
		common.PrintSession(out, s, false)
	}
	return nil
}
