package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/nickolajgrishuk/vstp/core"
	"github.com/nickolajgrishuk/vstp/internal/config"
	"github.com/nickolajgrishuk/vstp/internal/logging"
	"github.com/nickolajgrishuk/vstp/observer"
	"github.com/nickolajgrishuk/vstp/transport/tcp"
	"github.com/spf13/cobra"
)

var serveTCPCmd = &cobra.Command{
	Use:   "serve-tcp [addr]",
	Short: "Run a TCP VSTP listener that logs and echoes DATA frames",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runServeTCP,
}

func runServeTCP(cmd *cobra.Command, args []string) error {
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

	var srv *tcp.Server
	srv, err = tcp.Listen(addr,
		func(session observer.SessionID, peer string, f *core.Frame) {
			log.Infow("frame received", "peer", peer, "type", f.Type.String(), "bytes", len(f.Payload))
			switch f.Type {
			case core.TypeData:
				_ = srv.Send(session, core.NewData(f.Payload))
			case core.TypePing:
				_ = srv.Send(session, core.NewPong())
			case core.TypeHello:
				_ = srv.Send(session, core.NewWelcome())
			}
		},
		tcp.WithMaxFrameSize(uint32(cfg.TCP.MaxFrameSize)),
		tcp.WithLogger(log),
	)
	if err != nil {
		return err
	}
	defer srv.Close()

	log.Infow("tcp listener started", "addr", srv.Addr().String())
	go func() {
		if err := srv.Serve(); err != nil {
			log.Warnw("serve ended", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")
	return nil
}
