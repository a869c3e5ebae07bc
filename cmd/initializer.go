package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"

	firebase "firebase.google.com/go"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/option"
	_ "modernc.org/sqlite"

	"github.com/DTBbuilds/SmartDuka-sub007/internal/config"
	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification"
	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/notify"
	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/repo"
	"github.com/DTBbuilds/SmartDuka-sub007/utils"
)

type application struct {
	errorLog     *log.Logger
	infoLog      *log.Logger
	logger       *slog.Logger
	tokens       *utils.Manager
	registry     *prometheus.Registry
	rdb          *redis.Client
	verification *verification.Deps
}

func initializeApp(ctx context.Context, cfg config.Config, verifyCfg verification.Config, db *repo.DB, logger *slog.Logger, errorLog, infoLog *log.Logger) (*application, error) {
	tokens, err := utils.NewManager(cfg.JWT.Secret)
	if err != nil {
		return nil, err
	}

	if cfg.Database.Driver != "pgx" {
		if err := repo.Migrate(ctx, db); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	app := &application{
		errorLog: errorLog,
		infoLog:  infoLog,
		logger:   logger,
		tokens:   tokens,
		registry: registry,
	}

	deps := &verification.Deps{
		DB:       db,
		Logger:   logger,
		Registry: registry,
		Config:   verifyCfg,
	}

	if cfg.Redis.Addr != "" {
		app.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := app.rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		deps.RDB = app.rdb
	} else {
		infoLog.Print("redis not configured: events stay in-process, stats are not cached")
	}

	if cfg.SMTP.Host != "" {
		templates, err := notify.NewTemplateManager()
		if err != nil {
			return nil, err
		}
		if cfg.Templates.Dir != "" {
			if err := templates.LoadDir(cfg.Templates.Dir); err != nil {
				return nil, fmt.Errorf("load email templates: %w", err)
			}
		}
		deps.Mailer = notify.NewMailer(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			User:     cfg.SMTP.User,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}, templates)
	}

	if cfg.Firebase.CredentialsFile != "" {
		fbApp, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(cfg.Firebase.CredentialsFile))
		if err != nil {
			return nil, fmt.Errorf("firebase app: %w", err)
		}
		fcm, err := fbApp.Messaging(ctx)
		if err != nil {
			return nil, fmt.Errorf("firebase messaging: %w", err)
		}
		deps.Push = notify.NewPushSender(fcm)
	}

	if cfg.S3.Bucket != "" {
		store, err := utils.NewS3Store(utils.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			Bucket:    cfg.S3.Bucket,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			PublicURL: cfg.S3.PublicURL,
			Folder:    verifyCfg.ProofFolder,
		})
		if err != nil {
			return nil, err
		}
		deps.Proofs = store
	}

	app.verification = deps
	return app, nil
}

func (app *application) close() {
	if app.rdb != nil {
		_ = app.rdb.Close()
	}
}

// openDB opens driver ("mysql", "pgx" or "sqlite"). MySQL DSNs need parseTime=true.
func openDB(driver, dsn string) (*repo.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		log.Printf("Failed to open DB: %v", err)
		return nil, err
	}
	if err = db.Ping(); err != nil {
		log.Printf("Failed to ping DB: %v", err)
		return nil, err
	}
	db.SetMaxIdleConns(35)
	if driver == "sqlite" {
		db.SetMaxOpenConns(1)
	}
	log.Println("Successfully connected to database")
	return repo.Wrap(db, driver), nil
}
