package cmd

import (
	"log"
	"os"
	"path/filepath"

	"github.com/findy-network/findy-cxs/agent/utils"
	"github.com/findy-network/findy-cxs/cmds/serve"
	"github.com/findy-network/findy-cxs/completionhelp"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/spf13/cobra"
)

var serveEnvs = map[string]string{
	"wallet-name":     "WALLET_NAME",
	"wallet-key":      "WALLET_KEY",
	"wallet-path":     "WALLET_PATH",
	"wallet-type":     "WALLET_TYPE",
	"label":           "LABEL",
	"service":         "SERVICE",
	"host":            "HOST",
	"port":            "PORT",
	"ledger":          "LEDGER",
	"seed":            "SEED",
	"timeout":         "TIMEOUT",
	"claim-offer-ttl": "CLAIM_OFFER_TTL",
	"expiry-sweep":    "EXPIRY_SWEEP",
	"cache-size":      "CACHE_SIZE",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the agent behind the HTTP endpoint",
	Long: `
Runs the agent behind the HTTP endpoint until it's interrupted. The agent
prints its invitation and the state changes of its protocol objects.

Example
	findy-cxs serve \
		--wallet-name faber \
		--wallet-key 6cih1cVgRH8yHD54nEYyPKLmdv67o8QbufxaTHot3Qxp \
		--label faber --port 8080
	`,
	PreRunE: func(_ *cobra.Command, _ []string) (err error) {
		return BindEnvs(serveEnvs, "SERVE")
	},
	RunE: func(_ *cobra.Command, _ []string) (err error) {
		defer err2.Handle(&err)
		try.To(serveCmdData.Validate())
		if !rootFlags.dryRun {
			try.To1(serveCmdData.Exec(os.Stdout))
		}
		return nil
	},
}

var serveCmdData = serve.Cmd{}

func init() {
	defer err2.Catch(err2.Err(func(err error) {
		log.Println(err)
	}))

	home := utils.NewSettings().WalletPath()
	flags := serveCmd.Flags()
	flags.StringVar(&serveCmdData.WalletName, "wallet-name", "", flagInfo("wallet name", serveCmd.Name(), serveEnvs["wallet-name"]))
	flags.StringVar(&serveCmdData.WalletKey, "wallet-key", "", flagInfo("wallet key", serveCmd.Name(), serveEnvs["wallet-key"]))
	flags.StringVar(&serveCmdData.WalletPath, "wallet-path", home, flagInfo("wallet directory", serveCmd.Name(), serveEnvs["wallet-path"]))
	flags.StringVar(&serveCmdData.WalletType, "wallet-type", "", flagInfo("registered wallet type", serveCmd.Name(), serveEnvs["wallet-type"]))
	flags.StringVar(&serveCmdData.Label, "label", "", flagInfo("agent label and endpoint ID", serveCmd.Name(), serveEnvs["label"]))
	flags.StringVar(&serveCmdData.Service, "service", utils.DefaultServiceName, flagInfo("service name in the endpoint path", serveCmd.Name(), serveEnvs["service"]))
	flags.StringVar(&serveCmdData.Host, "host", "localhost", flagInfo("inbound host address", serveCmd.Name(), serveEnvs["host"]))
	flags.IntVar(&serveCmdData.Port, "port", 8080, flagInfo("inbound port", serveCmd.Name(), serveEnvs["port"]))
	flags.StringVar(&serveCmdData.Ledger, "ledger", filepath.Join(filepath.Dir(home), "ledger.gob"), flagInfo("ledger snapshot file", serveCmd.Name(), serveEnvs["ledger"]))
	flags.StringVar(&serveCmdData.Seed, "seed", "", flagInfo("seed of the root DID", serveCmd.Name(), serveEnvs["seed"]))
	flags.DurationVar(&serveCmdData.Timeout, "timeout", utils.HTTPReqTimeout, flagInfo("timeout of the outbound calls", serveCmd.Name(), serveEnvs["timeout"]))
	flags.DurationVar(&serveCmdData.ExpirySweep, "expiry-sweep", utils.ExpirySweep, flagInfo("how often expired offers are checked", serveCmd.Name(), serveEnvs["expiry-sweep"]))
	flags.IntVar(&serveCmdData.CacheSize, "cache-size", utils.DefaultCacheSize, flagInfo("ledger read cache entries", serveCmd.Name(), serveEnvs["cache-size"]))
	flags.DurationVar(&serveCmdData.ClaimOfferTTL, "claim-offer-ttl", utils.ClaimOfferTTL, flagInfo("how long the offer waits a request", serveCmd.Name(), serveEnvs["claim-offer-ttl"]))

	try.To(serveCmd.RegisterFlagCompletionFunc("wallet-name",
		func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
			return completionhelp.WalletNames(serveCmdData.WalletPath), cobra.ShellCompDirectiveNoFileComp
		}))

	rootCmd.AddCommand(serveCmd)
}
