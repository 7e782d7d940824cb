package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradegate/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
	Long: `Manage tradegate configuration files.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  tradegate config init -o tradegate.yaml
  tradegate config validate -f tradegate.yaml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	Long: `Create a new configuration file with default settings.

Example:
  tradegate config init -o tradegate.yaml`,
	RunE: runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Check if a configuration file is valid and can be loaded.

Example:
  tradegate config validate -f tradegate.yaml`,
	RunE: runConfigValidate,
}

var (
	configInitOutput   string
	configValidatePath string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "tradegate.yaml", "output config file path")
	configValidateCmd.Flags().StringVarP(&configValidatePath, "file", "f", "", "path to config file (required)")
	configValidateCmd.MarkFlagRequired("file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	c := config.Default()
	if err := c.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Printf("✓ Created default configuration: %s\n", configInitOutput)
	fmt.Println("\nEdit the file and run with:")
	fmt.Printf("  tradegate --config %s execute ...\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	c, err := config.LoadFromFile(configValidatePath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	d := c.Risk.Defaults
	fmt.Printf("✓ Configuration valid: %s\n", configValidatePath)
	fmt.Printf("  Limits: position %.2f, %d trades/day, loss %.2f (%d user overrides)\n",
		d.MaxPositionSize, d.MaxTradesPerDay, d.MaxDailyLoss, len(c.Risk.Users))
	fmt.Printf("  Trading day: %s\n", c.Risk.Timezone)
	fmt.Printf("  Store: %s\n", c.Store.Type)
	fmt.Printf("  Journal: %s\n", c.Journal.Type)
	fmt.Printf("  Broker: %s (paper: %v)\n", c.Broker.DefaultExchange, c.Broker.Paper)
	return nil
}
