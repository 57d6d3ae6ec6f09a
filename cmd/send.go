package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tutils/rxnet/rx"
	"github.com/tutils/rxnet/tcp"
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send [payload...]",
	Short: "Connect, write payloads and print the response",
	Long: `Connect to a TCP server, write each payload, half-close the connection
and print whatever the server sends back until it closes, For example:
  rxnet send --connect=127.0.0.1:1234 hello world`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cli := tcp.NewClient(
			tcp.WithConnectAddress(viper.GetString("send.connect")),
			tcp.WithDialTimeout(viper.GetDuration("send.timeout")),
			tcp.WithClientLogger(slog.Default()),
		)
		defer cli.Close()

		conn, err := cli.Dial(cmd.Context())
		if err != nil {
			return err
		}
		defer conn.Close()

		items, errc, sub := rx.Chan(rx.FromSource[[]byte](conn), 16)
		defer sub.Unsubscribe()

		interval := viper.GetDuration("send.interval")
		for i, p := range args {
			if i > 0 && interval > 0 {
				time.Sleep(interval)
			}
			if _, err := conn.Write([]byte(p)); err != nil {
				return err
			}
		}
		if err := conn.CloseWrite(); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for b := range items {
			out.Write(b)
		}
		if err := <-errc; err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)

	flags := sendCmd.Flags()
	flags.StringP("connect", "c", tcp.DefaultConnectAddress, "TCP server address")
	flags.Duration("timeout", tcp.DefaultDialTimeout, "dial timeout")
	flags.Duration("interval", 0, "pause between payloads")

	for _, name := range []string{"connect", "timeout", "interval"} {
		viper.BindPFlag("send."+name, flags.Lookup(name))
	}
}
