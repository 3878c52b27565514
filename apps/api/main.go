package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // register the /debug/pprof handlers
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	echoapi "github.com/eventuais/eventuais/apps/api/echo"
	"github.com/eventuais/eventuais/core"
	"github.com/eventuais/eventuais/core/analytics"
	"github.com/eventuais/eventuais/core/crm"
	"github.com/eventuais/eventuais/core/marketing"
	"github.com/eventuais/eventuais/core/project"
	"github.com/eventuais/eventuais/core/support"
	"github.com/eventuais/eventuais/core/user"
	cachesvc "github.com/eventuais/eventuais/services/cache"
	emailsvc "github.com/eventuais/eventuais/services/email"
	logsvc "github.com/eventuais/eventuais/services/logger"
	"github.com/eventuais/eventuais/storage/database"
	sqlxrepos "github.com/eventuais/eventuais/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()

	// set up cache; reports are computed on every run without it
	var cache core.Cache
	redisCache := cachesvc.NewRedisCacheFromConfig(conf)
	if err = redisCache.Ping(context.Background()); err != nil {
		logger.Warn(fmt.Sprintf("redis unreachable, report caching disabled: %v", err), err)
		_ = redisCache.Close()
	} else {
		cache = redisCache
		defer redisCache.Close()
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	crmSvc := crm.NewService(db, sqlxrepos.NewCRMRepository(db), validate)
	deps := echoapi.Deps{
		Conf:         conf,
		Logger:       logger,
		DB:           db,
		Cache:        cache,
		UserSvc:      user.NewService(sqlxrepos.NewUserRepository(db), mailSvc, validate, conf),
		CRMSvc:       crmSvc,
		MarketingSvc: marketing.NewService(db, sqlxrepos.NewMarketingRepository(db), crmSvc, mailSvc, validate, logger),
		SupportSvc:   support.NewService(db, sqlxrepos.NewSupportRepository(db), validate),
		AnalyticsSvc: analytics.NewService(db, sqlxrepos.NewAnalyticsRepository(db), cache, mailSvc, conf, validate, logger),
		ProjectSvc:   project.NewService(db, sqlxrepos.NewProjectRepository(db), validate),
		Validate:     validate,
		Translator:   translator,
	}

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	core.ParseEmailTemplates(logger, conf)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(deps)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	ctx := context.Background()
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return nil, err
	}

	db, err := database.Open(ctx, conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db, "up"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
