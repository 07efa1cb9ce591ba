package commands

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	tmos "github.com/tendermint/tendermint/libs/os"

	nm "roundabci/node"
)

// AddNodeFlags exposes some common configuration options on the command-line
// These are exposed for convenience of commands embedding a node
func AddNodeFlags(cmd *cobra.Command) {
	// bind flags
	cmd.Flags().String("moniker", config.Moniker, "node name")

	// abci flags
	cmd.Flags().String("proxy_app", config.ProxyApp, "address the ABCI server listens on")
	cmd.Flags().String("abci", config.ABCI, "specify abci transport (socket | grpc)")

	// consensus flags
	cmd.Flags().Int(
		"consensus.max_participants",
		config.Consensus.MaxParticipants,
		"number of participants the registration round waits for")

	// instrumentation flags
	cmd.Flags().Bool("instrumentation.prometheus", config.Instrumentation.Prometheus, "serve prometheus metrics")
	cmd.Flags().String(
		"instrumentation.prometheus_listen_addr",
		config.Instrumentation.PrometheusListenAddr,
		"address to serve prometheus metrics on")

	// db flags
	cmd.Flags().String(
		"db_backend",
		config.DBBackend,
		"database backend of the transition journal: goleveldb | memdb")
	cmd.Flags().String(
		"db_dir",
		config.DBPath,
		"database directory")
}

// NewRunNodeCmd returns the command that allows the CLI to start a node.
// It can be used with a custom node provider to supply a custom verifier or
// initial state.
func NewRunNodeCmd(nodeProvider nm.Provider) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "start",
		Aliases: []string{"node", "run"},
		Short:   "Run the ABCI application node",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := nodeProvider(config, logger)
			if err != nil {
				return errors.Wrap(err, "failed to create node")
			}

			if err := n.Start(); err != nil {
				return errors.Wrap(err, "failed to start node")
			}

			// Stop upon receiving SIGTERM or CTRL-C.
			tmos.TrapSignal(logger, func() {
				if n.IsRunning() {
					if err := n.Stop(); err != nil {
						logger.Error("unable to stop the node", "error", err)
					}
				}
			})

			// Run forever.
			select {}
		},
	}

	AddNodeFlags(cmd)
	return cmd
}
