package logsvc

import (
	"log"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/eventuais/eventuais/core"
	"github.com/eventuais/eventuais/core/user"
)

type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{std: std}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// prepare turns log args into rollbar args: the first user.User becomes the person,
// custom data maps and request infos are merged into a single map.
func (l RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var (
		usrSet bool
		custom map[string]interface{}
	)
	addCustom := func(fields map[string]interface{}) {
		if custom == nil {
			custom = make(map[string]interface{}, len(fields))
		}
		for k, v := range fields {
			custom[k] = v
		}
	}

	newArgs := make([]interface{}, 0, len(args)+2)
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		switch a := arg.(type) {
		case user.User:
			if !usrSet {
				rollbar.SetPerson(a.ID, a.Username, a.Email)
				usrSet = true
			}
		case core.RequestInfo:
			addCustom(a.Fields())
		case map[string]interface{}:
			addCustom(a)
		default:
			newArgs = append(newArgs, arg)
		}
	}
	if !usrSet {
		rollbar.ClearPerson()
	}
	if custom != nil {
		newArgs = append(newArgs, custom)
	}
	return newArgs
}

func (l RollbarLogger) print(msg string, args []interface{}) {
	l.std.Println(msg)
	for _, arg := range args {
		switch a := arg.(type) {
		case user.User:
			l.std.Printf("user: %s (%s)\n", a.Username, a.ID)
		case core.RequestInfo:
			l.std.Printf("request %s: %s %s\n", a.ID, a.Method, a.Path)
		default:
			l.std.Printf("%+v\n", arg)
		}
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	rollbar.Debug(l.prepare(msg, args)...)
	l.print(msg, args)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	rollbar.Info(l.prepare(msg, args)...)
	l.print(msg, args)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	rollbar.Warning(l.prepare(msg, args)...)
	l.print(msg, args)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	rollbar.Error(l.prepare(msg, args)...)
	l.print(msg, args)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	rollbar.Critical(l.prepare(msg, args)...)
	l.print(msg, args)
	l.std.Fatal(msg)
}
