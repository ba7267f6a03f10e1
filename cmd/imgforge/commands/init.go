package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/imgforge/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample imgforge configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/imgforge/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  imgforge init

  # Initialize with custom path
  imgforge init --config /etc/imgforge/config.yaml

  # Force overwrite existing config
  imgforge init --force`,
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
		// Use custom path
		err = config.InitConfigToPath(configFile, initForce)
		configPath = configFile
	} else {
		// Use default path
		configPath, err = config.InitConfig(initForce)
	}

	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file: set the S3 bucket, credentials and public base URL")
	fmt.Println("  2. Start the server with: imgforge start")
	fmt.Printf("  3. Or specify custom config: imgforge start --config %s\n", configPath)
	fmt.Println("\nSecurity note:")
	fmt.Println("  The config file may carry S3 credentials and is written with mode 0600.")
	fmt.Println("  For production, prefer environment variables:")
	fmt.Println("    export IMGFORGE_S3_ACCESS_KEY_ID=...")
	fmt.Println("    export IMGFORGE_S3_SECRET_ACCESS_KEY=...")

	return nil
}
