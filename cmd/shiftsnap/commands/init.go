package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PantaKoda/shiftsnap/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample ShiftSnap configuration file.

By default, the configuration file is created at
$XDG_CONFIG_HOME/shiftsnap/config.yaml. Use --config to specify a custom
path.

Examples:
  # Initialize with default location
  shiftsnap init

  # Initialize with custom path
  shiftsnap init --config /etc/shiftsnap/config.yaml

  # Force overwrite existing config
  shiftsnap init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	var configPath string
	var err error

	if configFile != "" {
		err = config.InitConfigToPath(configFile, initForce)
		configPath = configFile
	} else {
		configPath, err = config.InitConfig(initForce)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file (database URL, blob bucket)")
	fmt.Println("  2. Export the bot token: export SHIFTSNAP_TELEGRAM_TOKEN=<token>")
	fmt.Println("  3. Apply the schema: shiftsnap migrate")
	fmt.Println("  4. Start the service: shiftsnap start")

	return nil
}
