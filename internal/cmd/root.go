package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/filesrv/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "filesrv",
	Short: "Serialize concurrent file commands with fair per-file locks",
	Long: `filesrv reads commands from a control stream, one per line:

  read <file>            append the file's contents to the read output
  write <file> <text>    append text to the file
  empty <file>           move the file's contents to the empty output

Each command runs concurrently under a first-come-first-served lock on its
file, so commands on the same file never interleave and commands on different
files never wait for each other. Every command line is also recorded with a
timestamp in the audit log.

Without a subcommand, filesrv runs 'serve'.`,
	Args:          cobra.NoArgs,
	RunE:          runServe,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/filesrv/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	addServeFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("FILESRV")
	// Replace dots with underscores for nested keys in env vars
	// e.g., FILESRV_SERVER_WORK_DIR for server.work_dir
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
