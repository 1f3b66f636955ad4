package worker

import "github.com/spf13/cobra"

var opsAddr string

// NewWorkerCmd returns the parent "worker" command. Every worker serves the
// ops endpoint; --ops-addr lets several run on one host.
func NewWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run delivery workers",
	}
	cmd.PersistentFlags().StringVar(&opsAddr, "ops-addr", "", "listen address for health and metrics (default http.addr)")
	cmd.AddCommand(senderCmd)

	return cmd
}
