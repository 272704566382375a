// Package progress handles the progress command
package progress

import (
	"fmt"

	"fjacquet/stmt-import/cmd/common"
	"fjacquet/stmt-import/cmd/root"

	"github.com/spf13/cobra"
)

var verbose bool

// Cmd represents the progress command
var Cmd = &cobra.Command{
	Use:   "progress [session-id]",
	Short: "Show the state of a session",
	Long:  `Show the recorded state of an import or execute session. Without an id, list recorded sessions.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  progressFunc,
}

func init() {
	Cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "List every transaction")
}

func progressFunc(cmd *cobra.Command, args []string) error {
	ctx := root.Context(cmd)
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		sessions, err := root.AppContainer.GetStore().ListSessions(ctx)
		if err != nil {
			return err
		}
		if root.SharedFlags.JSON {
			return common.WriteJSON(out, root.SharedFlags.Output, sessions)
		}
		for _, s := range sessions {
			fmt.Fprintf(out, "%s  %-7s  %-10s  %4d/%-4d  %s\n",
				s.SessionID, s.Kind, s.Status, s.ProcessedCount, s.Total, s.CreatedAt.Format("2006-01-02 15:04"))
		}
		return nil
	}

	s, err := root.AppContainer.GetSessions().GetImportProgress(ctx, args[0])
	if err != nil {
		return err
	}
	if root.SharedFlags.JSON || root.SharedFlags.Output != "" {
		if err := common.WriteJSON(out, root.SharedFlags.Output, s); err != nil {
			return err
		}
	}
	if !root.SharedFlags.JSON {
		common.PrintSession(out, s, verbose)
	}
	return nil
}
