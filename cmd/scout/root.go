package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "scout",
	Short: "Discover, index and monitor project files",
	Long: `Scout walks a project tree, indexes the files that matter and keeps
the index current as files change, while holding its own CPU and memory
use within configured limits.

Examples:
  scout scan                   # Index the current directory with a progress view
  scout scan -n ~/src/app      # Plain text summary
  scout watch --metrics-addr :9090
  scout status                 # Is a watcher running?
  scout config show            # Show effective configuration`,
	SilenceUsage:      true,
	PersistentPreRunE: initializeLogging,
}

func init() {
	rootCmd.PersistentFlags().BoolP("no-interactive", "n", false, "disable TUI, use text output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "output JSON format")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output")
	rootCmd.PersistentFlags().String("store", "", "record store backend: badger, sqlite or memory")

	_ = viper.BindPFlag("no_interactive", rootCmd.PersistentFlags().Lookup("no-interactive"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("store", rootCmd.PersistentFlags().Lookup("store"))

	viper.SetEnvPrefix("SCOUT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// getVerbose returns true if verbose mode is enabled.
func getVerbose() bool {
	return viper.GetBool("verbose")
}

// getQuiet returns true if quiet mode is enabled.
func getQuiet() bool {
	return viper.GetBool("quiet")
}

// getJSON returns true if JSON output was requested.
func getJSON() bool {
	return viper.GetBool("json")
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...interface{}) {
	if getVerbose() && !getQuiet() {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message if quiet mode is not enabled.
func printInfo(format string, args ...interface{}) {
	if !getQuiet() {
		fmt.Printf(format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
