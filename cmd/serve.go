package cmd

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tutils/rxnet/counter"
	"github.com/tutils/rxnet/counter/period"
	"github.com/tutils/rxnet/rx"
	"github.com/tutils/rxnet/rxserver"
	"github.com/tutils/rxnet/tcp"
	"github.com/tutils/rxnet/wsfeed"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve TCP connections as observable streams",
	Long: `Listen for TCP connections and log every connection record, For example:
  rxnet serve --listen=0.0.0.0:1234
  rxnet serve --listen=0.0.0.0:1234 --echo --ws=ws://0.0.0.0:8080/stream`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, slog.Default(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	flags := serveCmd.Flags()
	flags.StringP("listen", "l", "127.0.0.1:1234", "TCP listen address")
	flags.Bool("echo", false, "write every received chunk back to its connection")
	flags.Bool("dump", false, "print every connection record to stdout")
	flags.String("ws", "", "websocket feed address, e.g. ws://0.0.0.0:8080/stream (disabled if empty)")
	flags.Int("chunk-size", 0, "read buffer size per connection (0 for default)")
	flags.Duration("keepalive", 0, "TCP keep-alive period (0 for system default)")
	flags.Int("keepalive-count", 0, "TCP keep-alive probe count (0 for system default)")
	flags.Duration("stats", 10*time.Second, "throughput report interval (0 to disable)")

	for _, name := range []string{"listen", "echo", "dump", "ws", "chunk-size", "keepalive", "keepalive-count", "stats"} {
		viper.BindPFlag("serve."+name, flags.Lookup(name))
	}
}

// serve runs until ctx is done or the server fails. Records are dumped
// to out if enabled; opts are applied after the configured ones.
func serve(ctx context.Context, logger *slog.Logger, out io.Writer, opts ...tcp.ServerOption) error {
	received := period.NewPeriodCounter(time.Second)

	conns := rxserver.Listen(append([]tcp.ServerOption{
		tcp.WithListenAddress(viper.GetString("serve.listen")),
		tcp.WithChunkSize(viper.GetInt("serve.chunk-size")),
		tcp.WithKeepAlive(viper.GetDuration("serve.keepalive"), viper.GetInt("serve.keepalive-count")),
		tcp.WithLogger(logger),
	}, opts...)...)

	var dump *dumper
	if viper.GetBool("serve.dump") {
		dump = newDumper(out)
	}

	errc := make(chan error, 2)
	sub := conns.Subscribe(rx.ObserverFuncs[rx.Observable[rxserver.Connection]]{
		Next: func(inner rx.Observable[rxserver.Connection]) {
			// One subscription, so both observers see the first chunk.
			obs := []rx.Observer[rxserver.Connection]{
				newRecordLogger(logger, received, viper.GetBool("serve.echo")),
			}
			if dump != nil {
				obs = append(obs, dump.observer())
			}
			inner.Subscribe(fanOut(obs))
		},
		Error:    func(err error) { errc <- err },
		Complete: func() { errc <- nil },
	})
	defer sub.Unsubscribe()

	if addr := viper.GetString("serve.ws"); addr != "" {
		feed, err := wsfeed.NewServer(conns, wsfeed.WithListenAddress(addr), wsfeed.WithLogger(logger))
		if err != nil {
			return err
		}
		go func() {
			if err := feed.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
		}()
		defer feed.Close()
	}

	var tick <-chan time.Time
	if d := viper.GetDuration("serve.stats"); d > 0 {
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-tick:
			logger.Info("rxnet: throughput", "total", received.Value(), "bytesPerSec", received.RatePerSec())
		case err := <-errc:
			return err
		case <-ctx.Done():
			logger.Info("rxnet: stopping")
			return nil
		}
	}
}

// newRecordLogger returns an observer logging the records of one connection.
func newRecordLogger(logger *slog.Logger, received counter.Counter, echo bool) rx.Observer[rxserver.Connection] {
	var log *slog.Logger
	return rx.ObserverFuncs[rxserver.Connection]{
		Next: func(r rxserver.Connection) {
			if r.IsNew() {
				log = logger.With("conn", r.ID, "remote", r.Conn.RemoteAddr().String())
				log.Info("rxnet: connection opened")
				return
			}
			received.Add(int64(len(r.Data)))
			log.Debug("rxnet: data", "bytes", len(r.Data))
			if echo {
				if _, err := r.Conn.Write(r.Data); err != nil {
					log.Warn("rxnet: echo failed", "err", err)
				}
			}
		},
		Error: func(err error) {
			log.Warn("rxnet: connection failed", "err", err)
		},
		Complete: func() {
			log.Info("rxnet: connection closed")
		},
	}
}

func fanOut[T any](obs []rx.Observer[T]) rx.Observer[T] {
	return rx.ObserverFuncs[T]{
		Next: func(v T) {
			for _, o := range obs {
				o.OnNext(v)
			}
		},
		Error: func(err error) {
			for _, o := range obs {
				o.OnError(err)
			}
		},
		Complete: func() {
			for _, o := range obs {
				o.OnComplete()
			}
		},
	}
}
