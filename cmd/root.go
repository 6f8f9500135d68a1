/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X songtldr/cmd.Version=...".
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "songtldr",
	Short: "Summarise song lyrics from Genius",
	Long:  "songtldr looks up a song on Genius, summarises its lyrics with a language model and answers on Telegram or in the terminal.",
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	rootCmd.Version = Version
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
