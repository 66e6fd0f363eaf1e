package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/jmorante/job-hunter/internal/events"
	"github.com/jmorante/job-hunter/internal/httpapi"
	"github.com/jmorante/job-hunter/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the job hunter HTTP API",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("listen", "l", ":8080", "address for the HTTP API to listen on")
	viper.BindPFlag("listen", serveCmd.Flags().Lookup("listen"))
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

	logger.Info("starting the job hunter api", zap.String("version", resolveVersion()))

	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if config == nil {
		logger.Fatal("config is required")
	}

	deps, err := buildCollaborators(ctx, config, logger)
	if err != nil {
		logger.Fatal("building collaborators", zap.Error(err))
	}
	defer deps.Close()

	server := httpapi.New(httpapi.Config{
		Addr:            viper.GetString("listen"),
		Version:         resolveVersion(),
		PreferencesPath: config.PreferencesFile,
		ResumePath:      config.ResumeFile,
		LockPath:        config.LockFile,
	}, httpapi.Deps{
		Store:    deps.store,
		Pipeline: deps.pipeline,
		Tailor:   deps.tailor,
		Outreach: deps.outreach,
		Hub:      events.NewHub(),
		Logger:   logger,
	})

	if err := server.Start(ctx); err != nil {
		logger.Fatal("api server failed", zap.Error(err))
	}

	logger.Info("api server stopped")
}
