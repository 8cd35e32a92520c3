package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"omibyte.io/hwio/linkset"
)

var (
	inspectOpts = struct {
		section string
		size    int
	}{}

	inspectCmd = &cobra.Command{
		Use:   "inspect <binary>",
		Short: "Dump the records of a linker-set section",
		Long: `Read a linker-set section out of an ELF or Mach-O binary on disk and dump
its records without loading the image. The section is walked as a sequence of
equally sized records, so the record size of the registered payload type must
be given.`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			it, err := linkset.EnumerateFile(args[0], inspectOpts.section, inspectOpts.size)
			if err != nil {
				fatal(err)
			}

			fmt.Printf("%s: %d records of %d bytes\n", inspectOpts.section, it.Len(), inspectOpts.size)
			i := 0
			for it.Next() {
				fmt.Printf("%4d: % x\n", i, it.Record())
				i++
			}
		},
	}
)

func init() {
	inspectCmd.Flags().StringVarP(&inspectOpts.section, "section", "s", "", "section name, in the binary's own spelling")
	inspectCmd.Flags().IntVarP(&inspectOpts.size, "size", "n", 0, "record size in bytes")
	inspectCmd.MarkFlagRequired("section")
	inspectCmd.MarkFlagRequired("size")
	rootCmd.AddCommand(inspectCmd)
}
