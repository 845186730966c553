package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/f1re/watchdog/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write an example configuration file",
	Long: `Write an example configuration to the config path. An existing file is
never overwritten.

Example:
  watchdog init                               # ~/.claude-watchdog/config.yaml
  watchdog init --config ./watchdog.yaml`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		path := resolvedConfigPath()
		if err := config.WriteDefault(path); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s Wrote example configuration\n\n", green("✓"))
		fmt.Printf("  Config: %s\n", cyan(path))
		fmt.Println()
		fmt.Printf("%s Next steps:\n", gray("→"))
		fmt.Printf("  %s\n", gray("edit the services section"))
		fmt.Printf("  %s\n", gray("export TELEGRAM_BOT_TOKEN=... TELEGRAM_CHAT_ID=..."))
		fmt.Printf("  %s\n", gray("watchdog check"))
		fmt.Printf("  %s\n", gray("watchdog run"))
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
