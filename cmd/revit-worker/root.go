package main

import "github.com/spf13/cobra"

var (
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "revit-worker",
	Short: "File-driven job worker for Revit model health metrics and sheet exports",
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(onceCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to configuration file")
}
