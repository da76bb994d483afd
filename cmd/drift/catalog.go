package main

import (
	"github.com/spf13/cobra"
)

// vmtypesCmd represents the vmtypes command
var vmtypesCmd = &cobra.Command{
	Use:   "vmtypes",
	Short: "List the VM types apps can run on",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := authedClient()

		if err != nil {
			return err
		}

		vmtypes, err := client.ListVMTypes(cmd.Context())

		if err != nil {
			return authErr(err)
		}

		if flagJSON {
			return printJSON(vmtypes)
		}

		printRecords(vmtypes)

		return nil
	},
}

// regionsCmd represents the regions command
var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "List the regions apps can deploy to",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := authedClient()

		if err != nil {
			return err
		}

		regions, err := client.ListRegions(cmd.Context())

		if err != nil {
			return authErr(err)
		}

		if flagJSON {
			return printJSON(regions)
		}

		printRecords(regions)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(vmtypesCmd)
	rootCmd.AddCommand(regionsCmd)
}
