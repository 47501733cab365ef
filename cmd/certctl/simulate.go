package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/daveleo/exview-aio-protocol-tool/internal/common"
	"github.com/daveleo/exview-aio-protocol-tool/internal/simulator"
)

func newSimulateCmd(a *app) *cobra.Command {
	var (
		listen string
		silent []string
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Serve truth replies on UDP so runs can be tried without hardware",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := a.dataset()
			if err != nil {
				return err
			}
			dev, err := simulator.Listen(listen, ds, simulator.WithSilent(silent...))
			if err != nil {
				return err
			}
			defer dev.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "simulating %s on %s\n", emptyOr(ds.Device, "device"), dev.Addr())
			<-cmd.Context().Done()
			common.Logf("simulator stopped after %d request(s)", dev.Received())
			return nil
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "127.0.0.1:5000", "UDP address to listen on")
	cmd.Flags().StringSliceVar(&silent, "silent", nil, "codes the simulated device never answers")
	return cmd
}

func emptyOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
