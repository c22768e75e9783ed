package logsvc

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/masomo-curriculum/core"
)

// RollbarLogger reports to Rollbar and mirrors every entry to a std logger,
// one line per entry: "LEVEL msg key=value ... err=..."
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
	// nothing to report to without a token
	rollbar.SetEnabled(conf.RollbarToken != "" && !conf.TestMode)
	return &RollbarLogger{std: std}
}

type entry struct {
	msg    string
	errs   []error
	fields map[string]interface{}
	caller *core.Identity
}

// parseEntry sorts args into errors, fields and the first Identity; anything else becomes a field.
func parseEntry(msg string, args []interface{}) entry {
	e := entry{msg: msg, fields: map[string]interface{}{}}
	for i, arg := range args {
		switch v := arg.(type) {
		case core.Identity:
			if e.caller == nil {
				id := v
				e.caller = &id
			}
		case error:
			e.errs = append(e.errs, v)
		case map[string]interface{}:
			for k, val := range v {
				e.fields[k] = val
			}
		default:
			e.fields[fmt.Sprintf("arg%d", i)] = v
		}
	}
	return e
}

// rollbarArgs is the argument list rollbar.Log understands.
func (e entry) rollbarArgs() []interface{} {
	args := []interface{}{e.msg}
	if len(e.errs) > 0 {
		args = append(args, e.errs[0])
	}
	if len(e.fields) > 0 {
		args = append(args, e.fields)
	}
	return args
}

func (e entry) String() string {
	var b strings.Builder
	b.WriteString(e.msg)

	keys := make([]string, 0, len(e.fields))
	for k := range e.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_, _ = fmt.Fprintf(&b, " %s=%v", k, e.fields[k])
	}
	if e.caller != nil {
		_, _ = fmt.Fprintf(&b, " caller=%s", e.caller.Subject)
	}
	for _, err := range e.errs {
		_, _ = fmt.Fprintf(&b, " err=%q", err.Error())
	}
	return b.String()
}

func (l *RollbarLogger) log(level string, msg string, args []interface{}) entry {
	e := parseEntry(msg, args)
	if e.caller != nil {
		rollbar.SetPerson(e.caller.Subject, e.caller.Name, e.caller.Email)
	} else {
		rollbar.ClearPerson()
	}
	rollbar.Log(level, e.rollbarArgs()...)
	l.std.Printf("%s %s", strings.ToUpper(level), e)
	return e
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) { l.log(rollbar.DEBUG, msg, args) }
func (l *RollbarLogger) Info(msg string, args ...interface{})  { l.log(rollbar.INFO, msg, args) }
func (l *RollbarLogger) Warn(msg string, args ...interface{})  { l.log(rollbar.WARN, msg, args) }
func (l *RollbarLogger) Error(msg string, args ...interface{}) { l.log(rollbar.ERR, msg, args) }

func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	e := l.log(rollbar.CRIT, msg, args)
	rollbar.Close()
	l.std.Fatal(e.msg)
}
