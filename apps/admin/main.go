package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/eventuais/eventuais/core"
	"github.com/eventuais/eventuais/core/analytics"
	"github.com/eventuais/eventuais/core/support"
	cachesvc "github.com/eventuais/eventuais/services/cache"
	emailsvc "github.com/eventuais/eventuais/services/email"
	logsvc "github.com/eventuais/eventuais/services/logger"
	"github.com/eventuais/eventuais/storage/database"
	sqlxrepos "github.com/eventuais/eventuais/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// set up DB
	ctx := context.Background()
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(ctx, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}

	var cache core.Cache
	redisCache := cachesvc.NewRedisCacheFromConfig(conf)
	if err = redisCache.Ping(ctx); err == nil {
		cache = redisCache
	}

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	core.ParseEmailTemplates(logger, conf)

	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())

	cli := &commandLine{
		db:          db,
		validate:    validate,
		usrRepo:     sqlxrepos.NewUserRepository(db),
		crmRepo:     sqlxrepos.NewCRMRepository(db),
		projectRepo: sqlxrepos.NewProjectRepository(db),
		supportSvc:  support.NewService(db, sqlxrepos.NewSupportRepository(db), validate),
		analyticsSvc: analytics.NewService(
			db, sqlxrepos.NewAnalyticsRepository(db), cache, mailSvc, conf, validate, logger,
		),
	}

	err = newRootCommand(cli).Execute()
	_ = redisCache.Close()
	_ = db.Close()
	if err != nil {
		logger.Error(fmt.Sprintf("error: %v", err))
		os.Exit(1)
	}
}
