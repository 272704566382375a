// Package importer handles the import command
package importer

import (
	"fmt"
	"os"

	"fjacquet/stmt-import/cmd/common"
	"fjacquet/stmt-import/cmd/root"
	"fjacquet/stmt-import/internal/logging"
	"fjacquet/stmt-import/internal/models"
	"fjacquet/stmt-import/internal/session"
	"fjacquet/stmt-import/internal/transformer"

	"github.com/spf13/cobra"
)

var (
	format          string
	account         string
	draftFile       string
	acceptUncertain bool
	verbose         bool
)

// Cmd represents the import command
var Cmd = &cobra.Command{
	Use:   "import <statement>",
	Short: "Match the transactions of a statement file",
	Long: `Transform a bank statement into canonical transactions and match each one
against the entity registry. Transactions land in the matched, uncertain,
failed or skipped bucket; nothing is committed.`,
	Args: cobra.ExactArgs(1),
	RunE: importFunc,
}

func init() {
	Cmd.Flags().StringVarP(&format, "format", "f", "", "Statement format (amex, camt); defaults to import.format")
	Cmd.Flags().StringVarP(&account, "account", "a", "", "Account tag for the transactions; defaults to import.account")
	Cmd.Flags().StringVarP(&draftFile, "draft", "d", "", "Write confirmed transactions for the execute command to this file")
	Cmd.Flags().BoolVar(&acceptUncertain, "accept-uncertain", false, "Include oracle proposals in the draft")
	Cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "List every transaction in the summary")
}

func importFunc(cmd *cobra.Command, args []string) error {
	ctx := root.Context(cmd)
	c := root.AppContainer
	cfg := c.GetConfig()
	log := root.Logger(cmd)

	if format == "" {
		format = cfg.Import.Format
	}
	if account == "" {
		account = cfg.Import.Account
	}

	t, err := transformer.New(format, account)
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open statement: %w", err)
	}
	defer f.Close()

	rows, err := transformer.Read(format, f)
	if err != nil {
		return err
	}
	txns, rowErrors := transformer.TransformAll(t, rows, log)
	log.Info("Read statement",
		logging.F(logging.FieldInputFile, args[0]),
		logging.F(logging.FieldFormat, format),
		logging.F(logging.FieldCount, len(txns)))
	for _, re := range rowErrors {
		fmt.Fprintf(cmd.ErrOrStderr(), "skipped %v\n", re)
	}
	if len(txns) == 0 {
		return fmt.Errorf("no valid transactions in %s", args[0])
	}

	sessions := c.GetSessions()
	id, err := sessions.ProcessImport(ctx, session.ImportRequest{Transactions: txns, Account: account})
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
		common.PrintSession(out, s, verbose)
	}

	if draftFile != "" {
		draft, err := common.ConfirmDraft(ctx, c.GetStore(), s, acceptUncertain)
		if err != nil {
			return err
		}
		if err := common.WriteJSON(out, draftFile, session.ExecuteRequest{Transactions: draft}); err != nil {
			return err
		}
		log.Info("Wrote execute draft", logging.F(logging.FieldCount, len(draft)))
	}
	return nil
}
