package cmd

import (
	"log"
	"log/slog"
	"os"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rxnet",
	Short: "Reactive TCP server utils.",
	Long: `Reactive TCP server utils.
Repo: https://github.com/tutils/rxnet
Serve TCP connections as observable streams, For example:
  rxnet serve --listen=0.0.0.0:1234 --ws=ws://0.0.0.0:8080/stream
  rxnet send --connect=127.0.0.1:1234 hello world`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var level slog.Level
		if err := level.UnmarshalText([]byte(viper.GetString("log-level"))); err != nil {
			return err
		}
		slog.SetLogLoggerLevel(level)
		return nil
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.rxnet.yaml)")
	flags.String("log-level", "info", "log level: debug, info, warn or error")
	viper.BindPFlag("log-level", flags.Lookup("log-level"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			log.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".rxnet" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".rxnet")
	}

	// RXNET_SERVE_LISTEN overrides serve.listen.
	viper.SetEnvPrefix("rxnet")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		log.Println("Using config file:", viper.ConfigFileUsed())
	}
}
