package main

import (
	"fmt"
	"time"

	"github.com/nickolajgrishuk/vstp/core"
	"github.com/nickolajgrishuk/vstp/transport/tcp"
	"github.com/spf13/cobra"
)

var pingCount int

var pingCmd = &cobra.Command{
	Use:   "ping <addr>",
	Short: "Dial a VSTP TCP listener, send HELLO then repeated PINGs, and report round-trip time",
	Args:  cobra.ExactArgs(1),
	RunE:  runPing,
}

func init() {
	pingCmd.Flags().IntVar(&pingCount, "count", 4, "number of PING probes to send")
}

func runPing(cmd *cobra.Command, args []string) error {
	addr := args[0]
	cli, err := tcp.Dial(addr, 0)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer cli.Close()

	if err := cli.Send(core.NewHello()); err != nil {
		return fmt.Errorf("send HELLO: %w", err)
	}
	welcome, err := cli.Recv()
	if err != nil {
		return fmt.Errorf("recv WELCOME: %w", err)
	}
	if welcome.Type != core.TypeWelcome {
		fmt.Printf("warning: expected WELCOME, got %s\n", welcome.Type)
	}

	for i := 0; i < pingCount; i++ {
		start := time.Now()
		if err := cli.Send(core.NewPing()); err != nil {
			return fmt.Errorf("send PING: %w", err)
		}
		pong, err := cli.Recv()
		if err != nil {
			return fmt.Errorf("recv PONG: %w", err)
		}
		elapsed := time.Since(start)
		fmt.Printf("seq=%d type=%s time=%s\n", i, pong.Type, elapsed)
		time.Sleep(200 * time.Millisecond)
	}
	return nil
}
