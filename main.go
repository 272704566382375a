package main

import (
	"fmt"
	"os"

	"fjacquet/stmt-import/cmd/entity"
	"fjacquet/stmt-import/cmd/execute"
	"fjacquet/stmt-import/cmd/importer"
	"fjacquet/stmt-import/cmd/progress"
	"fjacquet/stmt-import/cmd/root"
	"fjacquet/stmt-import/cmd/rules"
)

func init() {
	root.Init()

	root.Cmd.AddCommand(importer.Cmd)
	root.Cmd.AddCommand(execute.Cmd)
	root.Cmd.AddCommand(progress.Cmd)
	root.Cmd.AddCommand(entity.Cmd)
	root.Cmd.AddCommand(rules.Cmd)
}

func main() {
	err := root.Cmd.Execute()
	if cerr := root.Shutdown(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
