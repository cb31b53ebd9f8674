package cmd

import (
	"context"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/zhipin-responder/internal/logger"
	"github.com/spigell/zhipin-responder/internal/responder"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with the configured account and save the cookie jar",
	Run: func(cmd *cobra.Command, _ []string) {
		login(cmd)
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)

	loginCmd.Flags().Bool("check", false, "only report whether the saved cookies still sign in")
}

func login(cmd *cobra.Command) {
	ctx := context.Background()

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
		logger.Fatal("preparing session", zap.Error(err))
	}
	defer cleanup()

	session := responder.New(sessionOptions(config), deps)
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("closing session", zap.Error(err))
		}
	}()

	if check, _ := cmd.Flags().GetBool("check"); check {
		if err := session.Start(ctx); err != nil {
			logger.Error("starting session", zap.Error(err))
			return
		}
		logger.Info("login status", zap.Bool("logged_in", session.CheckLogin(ctx)))
		return
	}

	if err := startSession(ctx, session, config, logger); err != nil {
		logger.Error("login failed", zap.Error(err))
		return
	}

	status := session.Status()
	logger.Info("login status", zap.Bool("logged_in", status.LoggedIn), zap.String("risk", status.Risk))
}
