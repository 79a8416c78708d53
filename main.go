package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/fansqz/pdb-debugger/config"
)

// Version 版本号，构建时可以通过ldflags覆盖
var Version = "1.0.1"

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:               "pdb-debugger",
	Short:             "Debug python programs through pdb",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		CloseLogger()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "Version: %s\n", Version)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default searches "+config.ConfigDir()+" and .)")
	flags.String("python", "", "python interpreter")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-file", "", "log file, stderr when empty")
	_ = viper.BindPFlag("python.interpreter", flags.Lookup("python"))
	_ = viper.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("log.path", flags.Lookup("log-file"))

	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(serveCmd, debugCmd, runCmd, configCmd, versionCmd)
}

// loadConfig 读取配置文件、环境变量和命令行参数
func loadConfig(cmd *cobra.Command, args []string) error {
	if err := config.Init(cfgFile); err != nil {
		return err
	}
	loaded, err := config.Load()
	if err != nil {
		return err
	}
	cfg = loaded
	return SetupLogger(cfg.Log)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
