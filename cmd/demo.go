package cmd

import (
	"log"
	"os"
	"time"

	"github.com/findy-network/findy-cxs/cmds/demo"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/spf13/cobra"
)

var demoEnvs = map[string]string{
	"http":    "HTTP",
	"host":    "HOST",
	"port":    "PORT",
	"ledger":  "LEDGER",
	"timeout": "TIMEOUT",
	"name":    "NAME",
	"email":   "EMAIL",
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Runs the credential exchange between two local agents",
	Long: `
Runs the credential exchange between two local agents. The issuer connects
to the holder, writes the schema and the claim definition to the ledger,
issues the claim and requests the proof of it.

Example
	findy-cxs demo --http --name Alice --email alice@example.com
	`,
	PreRunE: func(_ *cobra.Command, _ []string) (err error) {
		return BindEnvs(demoEnvs, "DEMO")
	},
	RunE: func(_ *cobra.Command, _ []string) (err error) {
		defer err2.Handle(&err)
		try.To(demoCmdData.Validate())
		if !rootFlags.dryRun {
			try.To1(demoCmdData.Exec(os.Stdout))
		}
		return nil
	},
}

var demoCmdData = demo.Cmd{}

func init() {
	defer err2.Catch(err2.Err(func(err error) {
		log.Println(err)
	}))

	flags := demoCmd.Flags()
	flags.BoolVar(&demoCmdData.HTTP, "http", false, flagInfo("use HTTP transport", demoCmd.Name(), demoEnvs["http"]))
	flags.StringVar(&demoCmdData.Host, "host", "127.0.0.1", flagInfo("inbound host address", demoCmd.Name(), demoEnvs["host"]))
	flags.IntVar(&demoCmdData.Port, "port", 0, flagInfo("inbound port, 0 picks free one", demoCmd.Name(), demoEnvs["port"]))
	flags.StringVar(&demoCmdData.Ledger, "ledger", "", flagInfo("ledger snapshot file", demoCmd.Name(), demoEnvs["ledger"]))
	flags.DurationVar(&demoCmdData.Timeout, "timeout", 30*time.Second, flagInfo("timeout of the whole run", demoCmd.Name(), demoEnvs["timeout"]))
	flags.StringVar(&demoCmdData.Name, "name", "Alice", flagInfo("name in the claim", demoCmd.Name(), demoEnvs["name"]))
	flags.StringVar(&demoCmdData.Email, "email", "alice@example.com", flagInfo("email in the claim", demoCmd.Name(), demoEnvs["email"]))

	rootCmd.AddCommand(demoCmd)
}
