package cli

import (
	"fmt"

	"newsletter-backend/config"
	"newsletter-backend/database"
	"newsletter-backend/delivery"
	"newsletter-backend/email"
	"newsletter-backend/logging"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// environment bundles the state every command starts from.
type environment struct {
	settings config.Settings
	logger   *zap.Logger
	db       *gorm.DB
}

func newEnvironment(opts *RootOptions) (*environment, error) {
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	logger, err := logging.New(settings.Log)
	if err != nil {
		return nil, err
	}

	db, err := database.Open(settings.Database, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	return &environment{settings: settings, logger: logger, db: db}, nil
}

func (r *environment) Close() {
	if err := database.Close(r.db); err != nil {
		r.logger.Warn("closing database", zap.Error(err))
	}
	_ = r.logger.Sync()
}

func (r *environment) newWorker() (*delivery.Worker, error) {
	client, err := email.NewClientFromSettings(r.settings.Email)
	if err != nil {
		return nil, err
	}
	return delivery.NewWorker(r.db, client, r.logger, delivery.ConfigFromSettings(r.settings.Worker)), nil
}
