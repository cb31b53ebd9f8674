package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/zhipin-responder/internal/logger"
	"github.com/spigell/zhipin-responder/internal/responder"
	"github.com/spigell/zhipin-responder/internal/rpc"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the JSON-RPC tools over HTTP",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("listen", "l", "", "address to listen on (default :8000)")

	viper.BindPFlag("serve.listen", serveCmd.Flags().Lookup("listen"))
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	config = normalize(config)

	deps, cleanup, err := sessionDeps(ctx, config, logger)
	if err != nil {
		logger.Fatal("preparing sessions", zap.Error(err))
	}
	defer cleanup()

	server := rpc.New(sessionFactory(config, deps, logger), resolveVersion(), logger)

	errs := make(chan error, 1)
	go func() {
		errs <- server.Listen(config.Serve.Listen)
	}()

	select {
	case err := <-errs:
		logger.Error("server stopped", zap.Error(err))
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	if err := server.Shutdown(); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

// sessionFactory applies the per-call login arguments over the config.
func sessionFactory(config *Config, deps responder.Deps, logger *zap.Logger) rpc.Factory {
	return func(args rpc.LoginArgs) rpc.Session {
		opts := sessionOptions(config)
		opts.Headless = args.Headless
		opts.AntiDetection = args.AntiDetection
		if args.MaxRequestsPerMinute > 0 {
			opts.MaxRequests = args.MaxRequestsPerMinute
			opts.Window = 0
		}

		d := deps
		if !args.UseProxy {
			d.Proxies = nil
		} else if d.Proxies == nil {
			logger.Warn("proxy requested but proxy pool is not configured")
		}

		return responder.New(opts, d)
	}
}
