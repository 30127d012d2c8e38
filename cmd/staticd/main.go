// Command staticd serves the files of a directory over HTTP/1.1, in plain
// text or over TLS.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/Brownie44l1/staticd/internal/config"
	"github.com/Brownie44l1/staticd/internal/fileserver"
	"github.com/Brownie44l1/staticd/internal/server"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newCommand().ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, "staticd:", err)
		os.Exit(exitCode(err))
	}
}

func newCommand() *cobra.Command {
	v := viper.New()
	config.SetDefaults(v)
	v.SetEnvPrefix("STATICD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var (
		cfg config.Config
		log *zap.Logger
	)

	cmd := &cobra.Command{
		Use:           "staticd",
		Short:         "Serve a directory over HTTP/1.1",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, _ []string) (err error) {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			if file := v.GetString("config"); file != "" {
				v.SetConfigFile(file)
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("read config: %w", err)
				}
			}

			cfg, err = config.Load(v)
			if err != nil {
				return err
			}
			log, err = newLogger(cfg.LogLevel)
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer log.Sync()
			return run(cmd.Context(), cfg, log)
		},
	}

	d := config.Default()
	flags := cmd.Flags()
	flags.String("root", d.Root, "directory to serve")
	flags.String("addr", d.Addr, "IPv4 address to listen on")
	flags.Int("port", d.Port, "port to listen on")
	flags.Bool("secure", d.Secure, "serve over TLS")
	flags.String("cert", "", "PEM certificate file, self-signed when empty")
	flags.String("key", "", "PEM private key file")
	flags.Bool("keepalive", d.KeepAlive, "honour Connection: keep-alive")
	flags.Duration("keepalive-timeout", d.KeepAliveTimeout, "idle time before a connection is closed")
	flags.Duration("handshake-timeout", d.HandshakeTimeout, "TLS handshake deadline")
	flags.String("log-level", d.LogLevel.String(), "debug, info, warn or error")
	flags.String("config", "", "optional config file (yaml, toml or json)")

	return cmd
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	if err := os.Chdir(cfg.Root); err != nil {
		log.Error("fail to change directory", zap.String("root", cfg.Root), zap.Error(err))
		return err
	}
	root := cfg.Root
	cfg.Root = "."

	srv, err := server.New(cfg, log)
	if err != nil {
		return err
	}
	if err := srv.Init(ctx); err != nil {
		log.Error("fail to initialize", zap.Error(err))
		return err
	}

	log.Info("serving",
		zap.String("root", root),
		zap.Stringer("addr", srv.Addr()),
		zap.Bool("secure", cfg.Secure),
		zap.Bool("keepalive", cfg.KeepAlive),
	)

	h := fileserver.New(cfg, log, srv.Metrics())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Listen(h)
	})
	g.Go(func() error {
		<-ctx.Done()
		return srv.Close()
	})
	err = g.Wait()

	snap := srv.Metrics().Snapshot()
	log.Info("stopped",
		zap.Int64("connections", snap.ConnectionsTotal),
		zap.Int64("requests", snap.RequestsTotal),
		zap.Int64("responses_2xx", snap.Responses2xx),
		zap.Int64("errors_4xx", snap.Errors4xx),
		zap.Int64("errors_5xx", snap.Errors5xx),
		zap.Int64("bytes_sent", snap.BytesSent),
		zap.Duration("avg_latency", snap.AverageLatency),
	)
	return err
}

func newLogger(level zapcore.Level) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// exitCode maps err to the process status: the negated errno when one is
// wrapped inside, -1 otherwise.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var errno syscall.Errno
	if errors.As(err, &errno) && errno != 0 {
		return -int(errno)
	}
	return -1
}
