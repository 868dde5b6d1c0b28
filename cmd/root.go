package cmd

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/findy-network/findy-cxs/agent/utils"
	"github.com/findy-network/findy-cxs/cmds"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// envPrefix starts every environment variable of the CLI, e.g. FCXS_LOGGING
// or FCXS_SERVE_LABEL.
const envPrefix = "FCXS"

var errSubCmd = errors.New("subcommand needed")

var rootCmd = &cobra.Command{
	Version: utils.Version,
	Use:     "findy-cxs",
	Short:   "Findy credential exchange cli tool",
	Long: `
Findy credential exchange cli tool

Runs the agents of the credential exchange core: connections, claims and
proofs between agents over in-process or HTTP transport. Every flag can be
given in the config file or in its FCXS_ environment variable as well.
	`,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		cmds.ParseLoggingArgs(rootFlags.logging)
		for c := cmd; c != nil; c = c.Parent() {
			bindViperFlags(c)
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type RootFlags struct {
	cfgFile string
	dryRun  bool
	logging string
}

var rootFlags = RootFlags{}

var rootEnvs = map[string]string{
	"config":  "CONFIG",
	"logging": "LOGGING",
	"dry-run": "DRY_RUN",
}

func init() {
	defer err2.Catch(err2.Err(func(err error) {
		log.Println(err)
	}))

	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&rootFlags.cfgFile, "config", "",
		flagInfo("YAML or JSON file of the flag values", "", rootEnvs["config"]))
	flags.StringVar(&rootFlags.logging, "logging", "-logtostderr=true -v=2",
		flagInfo("glog arguments", "", rootEnvs["logging"]))
	flags.BoolVarP(&rootFlags.dryRun, "dry-run", "n", false,
		flagInfo("validate the arguments only", "", rootEnvs["dry-run"]))

	try.To(viper.BindPFlag("logging", flags.Lookup("logging")))
	try.To(viper.BindPFlag("dry-run", flags.Lookup("dry-run")))
	try.To(BindEnvs(rootEnvs, ""))
}

// initConfig reads the config file given by the flag or the environment
// before the flag values are taken from viper.
func initConfig() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	cfgFile := rootFlags.cfgFile
	if cfgFile == "" {
		cfgFile = os.Getenv(getEnvName("", "config"))
	}
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			log.Println("config file:", err)
		} else if rootFlags.cfgFile != "" {
			fmt.Println("Using config file:", viper.ConfigFileUsed())
		}
	}

	rootFlags.logging = viper.GetString("logging")
	rootFlags.dryRun = viper.GetBool("dry-run")
}

// BindEnvs binds the flags of the map to their environment variables.
// Command name is empty for the root flags.
func BindEnvs(envMap map[string]string, cmdName string) (err error) {
	defer err2.Handle(&err)
	for flagKey, envName := range envMap {
		try.To(viper.BindEnv(flagKey, getEnvName(cmdName, envName)))
	}
	return nil
}

func flagInfo(info, cmdPrefix, envName string) string {
	return info + ", " + getEnvName(cmdPrefix, envName)
}

func getEnvName(cmdName, envName string) string {
	if cmdName == "" {
		return envPrefix + "_" + strings.ToUpper(envName)
	}
	return envPrefix + "_" + strings.ToUpper(cmdName) + "_" + envName
}

// bindViperFlags sets the local flags of the command from viper, i.e. from
// the config file and the environment, when they have a value there.
func bindViperFlags(cmd *cobra.Command) {
	defer err2.Catch(err2.Err(func(err error) {
		log.Println(err)
	}))

	flags := cmd.LocalFlags()
	try.To(viper.BindPFlags(flags))
	if cmd.PreRunE != nil {
		try.To(cmd.PreRunE(cmd, nil))
	}
	flags.VisitAll(func(f *pflag.Flag) {
		if v := viper.GetString(f.Name); v != "" {
			try.To(flags.Set(f.Name, v))
		}
	})
}

// subCmdNeeded is the RunE of the parent commands.
func subCmdNeeded(cmd *cobra.Command, _ []string) error {
	_ = cmd.Help()
	return errSubCmd
}
