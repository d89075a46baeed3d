package log

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey string

const (
	ConnIDKey    ctxKey = "ConnID"
	ChannelIDKey ctxKey = "ChanID"
	ProgramIDKey ctxKey = "ProgramID"
)

var (
	mu     sync.RWMutex
	logger = zap.NewNop().Sugar()
)

// Init installs the process-wide logger. Until it is called, logging is a no-op.
func Init(development bool, level string) error {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return err
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	built, err := cfg.Build()
	if err != nil {
		return err
	}
	SetLogger(built)
	return nil
}

func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l.Sugar()
}

// L returns the untagged logger.
func L() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func Sync() {
	_ = L().Sync()
}

func ctxFields(ctx context.Context) []interface{} {
	var fields []interface{}
	if connID := ctx.Value(ConnIDKey); connID != nil {
		fields = append(fields, "conn", connID)
	}
	if stmtID := ctx.Value(ChannelIDKey); stmtID != nil {
		fields = append(fields, "stmt", stmtID)
	}
	if programID := ctx.Value(ProgramIDKey); programID != nil {
		fields = append(fields, "program", programID)
	}
	return fields
}

func Println(l Loggable, args ...interface{}) {
	msg := strings.TrimSuffix(fmt.Sprintln(args...), "\n")
	L().Infow(msg, ctxFields(l.Ctx())...)
}

func Printf(l Loggable, format string, args ...interface{}) {
	L().Infow(fmt.Sprintf(format, args...), ctxFields(l.Ctx())...)
}

func Errorf(l Loggable, format string, args ...interface{}) {
	L().Errorw(fmt.Sprintf(format, args...), ctxFields(l.Ctx())...)
}

func Debugf(l Loggable, format string, args ...interface{}) {
	L().Debugw(fmt.Sprintf(format, args...), ctxFields(l.Ctx())...)
}

type Loggable interface {
	Ctx() context.Context
}

type ctxLoggable struct {
	ctx context.Context
}

func (c ctxLoggable) Ctx() context.Context {
	return c.ctx
}

// From wraps a bare context so it can be logged against.
func From(ctx context.Context) Loggable {
	return ctxLoggable{ctx: ctx}
}
