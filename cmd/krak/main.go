package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("krak.cli")

const version = "0.1.0"

func main() {
	var verbose int

	rootCmd := &cobra.Command{
		Use:          "krak",
		Short:        "Assembler and disassembler for Java class files",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			commonlog.Configure(verbose, nil)
		},
	}
	rootCmd.PersistentFlags().CountVarP(&verbose, "verbose", "v", "log more (repeatable)")

	rootCmd.AddCommand(newAsmCmd())
	rootCmd.AddCommand(newDisCmd())
	rootCmd.AddCommand(newLSPCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
