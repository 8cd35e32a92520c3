package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "hwio",
	Short: "Work with linker-set sections and register access code",
	Long: `hwio inspects linker-set sections in built binaries, emits linker-set
object files from manifests, and statically checks Go source that registers
records or constructs volatile register handles.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func fatal(err error) {
	println("hwio:", err.Error())
	os.Exit(1)
}
