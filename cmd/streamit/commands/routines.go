package commands

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/yxiaowhut/streamit/internal/cli/output"
	"github.com/yxiaowhut/streamit/pkg/filter/builtin"
)

var routinesOutput string

var routinesCmd = &cobra.Command{
	Use:   "routines",
	Short: "List the work routines scripts can use",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(routinesOutput)
		if err != nil {
			return err
		}

		table := output.NewTableData("Name", "Inputs", "Outputs", "State")
		var list []builtin.Routine
		for _, name := range builtin.Names() {
			r, _ := builtin.Lookup(name)
			list = append(list, r)
			table.AddRow(r.Name, strconv.Itoa(int(r.Inputs)), strconv.Itoa(int(r.Outputs)), strconv.FormatUint(uint64(r.StateSize), 10))
		}

		printer := output.NewPrinter(cmd.OutOrStdout(), format, false)
		if format == output.FormatTable {
			return printer.Print(table)
		}
		return printer.Print(list)
	},
}

func init() {
	routinesCmd.Flags().StringVarP(&routinesOutput, "output", "o", "table", "Output format (table|json|yaml)")
}
