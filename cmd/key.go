package cmd

import (
	"log"
	"os"

	"github.com/findy-network/findy-cxs/cmds"
	"github.com/findy-network/findy-cxs/cmds/key"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/spf13/cobra"
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Wallet key tools",
	Long: `
Wallet key tools. The serve command opens its wallet with a base58 encoded
32 byte key which these commands create and check.
	`,
	RunE: subCmdNeeded,
}

var keyEnvs = map[string]string{
	"seed": "SEED",
	"key":  "WALLET_KEY",
}

var createKeyCmd = &cobra.Command{
	Use:   "create",
	Short: "Prints a new wallet key",
	Long: `
Prints a new wallet key. The same seed gives always the same key, without
the seed the key is random.

Example
	findy-cxs key create --seed 00000000000000000000thisisa_test
	`,
	PreRunE: func(_ *cobra.Command, _ []string) error {
		return BindEnvs(keyEnvs, "KEY")
	},
	RunE: func(_ *cobra.Command, _ []string) error {
		return runKeyCmd(&keyCreateCmd)
	},
}

var checkKeyCmd = &cobra.Command{
	Use:   "check",
	Short: "Checks that the wallet key is valid",
	Long: `
Checks that the wallet key is valid for the serve command.

Example
	findy-cxs key check --key 6cih1cVgRH8yHD54nEYyPKLmdv67o8QbufxaTHot3Qxp
	`,
	PreRunE: func(_ *cobra.Command, _ []string) error {
		return BindEnvs(keyEnvs, "KEY")
	},
	RunE: func(_ *cobra.Command, _ []string) error {
		return runKeyCmd(&keyCheckCmd)
	},
}

var (
	keyCreateCmd = key.CreateCmd{}
	keyCheckCmd  = key.CheckCmd{}
)

func runKeyCmd(c cmds.Command) (err error) {
	defer err2.Handle(&err)
	try.To(c.Validate())
	if !rootFlags.dryRun {
		try.To1(c.Exec(os.Stdout))
	}
	return nil
}

func init() {
	defer err2.Catch(err2.Err(func(err error) {
		log.Println(err)
	}))

	createKeyCmd.Flags().StringVar(&keyCreateCmd.Seed, "seed", "",
		flagInfo("seed for wallet key creation", keyCmd.Name(), keyEnvs["seed"]))
	checkKeyCmd.Flags().StringVar(&keyCheckCmd.Key, "key", "",
		flagInfo("wallet key to check", keyCmd.Name(), keyEnvs["key"]))

	rootCmd.AddCommand(keyCmd)
	keyCmd.AddCommand(createKeyCmd, checkKeyCmd)
}
