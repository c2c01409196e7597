package main

import (
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/nickolajgrishuk/vstp/core"
	"github.com/nickolajgrishuk/vstp/internal/config"
	"github.com/nickolajgrishuk/vstp/internal/logging"
	"github.com/nickolajgrishuk/vstp/observer"
	"github.com/nickolajgrishuk/vstp/reassembly"
	"github.com/nickolajgrishuk/vstp/transport/udp"
	"github.com/spf13/cobra"
)

var serveUDPCmd = &cobra.Command{
	Use:   "serve-udp [addr]",
	Short: "Run a UDP VSTP listener that logs and echoes DATA frames",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runServeUDP,
}

func runServeUDP(cmd *cobra.Command, args []string) error {
	addr := ":8080"
	if len(args) > 0 {
		addr = args[0]
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	udpCfg := udp.Config{
		MaxDatagramSize: cfg.UDP.MaxDatagramSize,
		FragmentEnabled: cfg.UDP.FragmentEnabled,
		AckTimeout:      cfg.UDP.AckTimeout,
		RetryDelay:      cfg.UDP.RetryDelay,
		MaxRetryDelay:   cfg.UDP.MaxRetryDelay,
		MaxRetries:      cfg.UDP.MaxRetries,
		Reassembly: reassembly.Config{
			MaxSessions:  cfg.Reassembly.MaxSessions,
			Timeout:      cfg.Reassembly.Timeout,
			MaxFragments: cfg.Reassembly.MaxFragments,
		},
	}

	var tr *udp.Transport
	tr, err = udp.Bind(addr, udpCfg,
		func(session observer.SessionID, peer *net.UDPAddr, f *core.Frame) {
			log.Infow("frame received", "peer", peer.String(), "type", f.Type.String(), "bytes", len(f.Payload))
			switch f.Type {
			case core.TypeData:
				_ = tr.Send(peer, core.NewData(f.Payload))
			case core.TypePing:
				_ = tr.Send(peer, core.NewPong())
			}
		},
		udp.WithLogger(log),
	)
	if err != nil {
		return err
	}
	defer tr.Close()

	log.Infow("udp listener started", "addr", tr.LocalAddr().String())
	go func() {
		if err := tr.Serve(); err != nil {
			log.Warnw("serve ended", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")
	return nil
}
