package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          int
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Name          string
		DisableTLS    bool
	}

	ServerConfig struct {
		Host                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	RedisConfig struct {
		Addr      string
		Password  string
		DB        int
		ReportTTL time.Duration
	}

	Config struct {
		AppName                   string
		Env                       string // DEV (local; default), TEST, QA, PROD
		Build                     string
		Debug                     bool
		TestMode                  bool
		SecretKey                 string
		WorkDir                   string
		FrontendBaseURL           string
		RollbarToken              string
		SendgridApiKey            string
		PasswordResetTimeoutDelta time.Duration

		Database DatabaseConfig
		Server   ServerConfig
		Redis    RedisConfig

		defaultFromEmail string
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// DefaultFromEmail parses the configured sender, falling back to a bare address.
func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: c.defaultFromEmail}
	}
	return *addr
}

// NewConfig loads the configuration from the environment (and an optional .env file).
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("appName", "Eventuais")
	v.SetDefault("build", "develop")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("secretKey", "x8q^w!2n$4b@t7e_eventuais_dev_only_k9#m3z&r5p*v1")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("defaultFromEmail", "Eventuais <noreply@localhost>")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)

	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", 5432)
	v.SetDefault("dbUser", "eventuais")
	v.SetDefault("dbPassword", "eventuais")
	v.SetDefault("dbAdminUser", "postgres")
	v.SetDefault("dbAdminPassword", "postgres")
	v.SetDefault("dbName", "eventuais")
	v.SetDefault("dbDisableTLS", true)

	v.SetDefault("serverHost", ":8000")
	v.SetDefault("serverDebugHost", ":4000")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("jwtRefreshExpirationDelta", 4*time.Hour)

	v.SetDefault("redisAddr", "localhost:6379")
	v.SetDefault("redisPassword", "")
	v.SetDefault("redisDB", 0)
	v.SetDefault("redisReportTTL", 10*time.Minute)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		AppName:                   v.GetString("appName"),
		Env:                       env,
		Build:                     v.GetString("build"),
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("testMode"),
		SecretKey:                 v.GetString("secretKey"),
		WorkDir:                   wd,
		FrontendBaseURL:           v.GetString("frontendBaseURL"),
		RollbarToken:              v.GetString("rollbarToken"),
		SendgridApiKey:            v.GetString("sendgridApiKey"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		Database: DatabaseConfig{
			Engine:        v.GetString("dbEngine"),
			Host:          v.GetString("dbHost"),
			Port:          v.GetInt("dbPort"),
			User:          v.GetString("dbUser"),
			Password:      v.GetString("dbPassword"),
			AdminUser:     v.GetString("dbAdminUser"),
			AdminPassword: v.GetString("dbAdminPassword"),
			Name:          v.GetString("dbName"),
			DisableTLS:    v.GetBool("dbDisableTLS"),
		},
		Server: ServerConfig{
			Host:                      v.GetString("serverHost"),
			DebugHost:                 v.GetString("serverDebugHost"),
			ShutdownTimeout:           v.GetDuration("serverShutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("jwtRefreshExpirationDelta"),
		},
		Redis: RedisConfig{
			Addr:      v.GetString("redisAddr"),
			Password:  v.GetString("redisPassword"),
			DB:        v.GetInt("redisDB"),
			ReportTTL: v.GetDuration("redisReportTTL"),
		},
		defaultFromEmail: v.GetString("defaultFromEmail"),
	}
}

// NewTestConfig returns the configuration used by tests.
func NewTestConfig() *Config {
	conf := NewConfig()
	conf.TestMode = true
	conf.Debug = false
	conf.SecretKey = "test-secret"
	return conf
}
