package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Field = zap.Field

var (
	Any        = zap.Any
	Array      = zap.Array
	Bool       = zap.Bool
	ByteString = zap.ByteString
	Duration   = zap.Duration
	Float64    = zap.Float64
	Float32    = zap.Float32
	Int        = zap.Int
	Int64      = zap.Int64
	Int32      = zap.Int32
	String     = zap.String
	Uint       = zap.Uint
	Uint64     = zap.Uint64
	Uint32     = zap.Uint32
	Error      = zap.Error
	Stringer   = zap.Stringer
	Strings    = zap.Strings
	Time       = zap.Time
	Errors     = zap.Errors
)

// Level mirrors zapcore.Level so callers do not need to import zapcore.
type Level zapcore.Level

func (l Level) Zap() zapcore.Level { return zapcore.Level(l) }

const (
	DebugLevel = Level(zapcore.DebugLevel)
	InfoLevel  = Level(zapcore.InfoLevel)
	WarnLevel  = Level(zapcore.WarnLevel)
	ErrorLevel = Level(zapcore.ErrorLevel)
)
