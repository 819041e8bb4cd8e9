// visadocsd polls a Google Drive intake folder and runs each uploaded visa
// document through extraction, classification, analysis and persistence.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"visadocs/internal/archive"
	"visadocs/internal/common"
	"visadocs/internal/drive"
	"visadocs/internal/extract"
	"visadocs/internal/intelligence/openai"
	"visadocs/internal/pipeline"
	"visadocs/internal/repository"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, relying on environment")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.Pipeline.WorkDir, 0o755); err != nil {
		logger.Error("cannot create work dir", "dir", cfg.Pipeline.WorkDir, "error", err)
		os.Exit(1)
	}

	store, err := repository.Open(ctx, repository.Config{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN,
	}, logger)
	if err != nil {
		logger.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.InitSchema(ctx); err != nil {
		logger.Error("schema initialization failed", "error", err)
		os.Exit(1)
	}

	files, err := drive.NewGoogleStore(ctx, cfg.Drive.CredentialsFile, logger)
	if err != nil {
		logger.Error("drive client unavailable", "error", err)
		os.Exit(1)
	}

	intel := openai.New(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		VisionModel: cfg.LLM.VisionModel,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, logger)

	engine := extract.NewEngine(extract.Config{
		Pdftoppm: cfg.Pipeline.Pdftoppm,
		DPI:      cfg.Pipeline.OCRDPI,
		WorkDir:  cfg.Pipeline.WorkDir,
	}, intel, logger)

	processor := pipeline.NewProcessor(pipeline.Deps{
		Logger: logger,
		Files:  files,
		Folders: drive.Folders{
			Incoming:    cfg.Drive.IncomingID,
			Processing:  cfg.Drive.ProcessingID,
			Verified:    cfg.Drive.VerifiedID,
			NeedsReview: cfg.Drive.NeedsReviewID,
		},
		Repo:       store,
		Extractor:  engine,
		Intel:      intel,
		Expander:   archive.NewExpander(logger),
		WorkDir:    cfg.Pipeline.WorkDir,
		MaxRecords: cfg.Database.MaxRecords,
	})

	processor.Run(ctx, cfg.Pipeline.PollInterval)
	logger.Info("shutdown complete")
}
