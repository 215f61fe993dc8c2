// MIT License
//
// Copyright (c) 2026 Meshgrain Authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package log

import (
	"io"
	golog "log"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// DefaultLogger is a global logger configured to output messages at
	// InfoLevel and above to os.Stderr.
	DefaultLogger Logger = NewZap(InfoLevel, os.Stderr)
	// DiscardLogger is a no-op logger that discards all log messages.
	DiscardLogger Logger = discardLogger{}
)

var levelToZap = map[Level]zapcore.Level{
	DebugLevel: zapcore.DebugLevel,
	InfoLevel:  zapcore.InfoLevel,
	WarnLevel:  zapcore.WarnLevel,
	ErrorLevel: zapcore.ErrorLevel,
	FatalLevel: zapcore.FatalLevel,
	PanicLevel: zapcore.PanicLevel,
}

// zapLogger implements Logger on top of go.uber.org/zap.
type zapLogger struct {
	level   Level
	sugar   *zap.SugaredLogger
	writers []io.Writer
}

var _ Logger = (*zapLogger)(nil)

// NewZap creates a Logger backed by zap, writing to the given sinks at the
// given minimum level.
func NewZap(level Level, writers ...io.Writer) Logger {
	if len(writers) == 0 {
		writers = []io.Writer{os.Stderr}
	}
	syncers := make([]zapcore.WriteSyncer, 0, len(writers))
	for _, w := range writers {
		syncers = append(syncers, zapcore.AddSync(w))
	}
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.NewMultiWriteSyncer(syncers...),
		levelToZap[level],
	)
	logger := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	return &zapLogger{level: level, sugar: logger.Sugar(), writers: writers}
}

func (z *zapLogger) Info(v ...any)                  { z.sugar.Info(v...) }
func (z *zapLogger) Infof(format string, v ...any)  { z.sugar.Infof(format, v...) }
func (z *zapLogger) Warn(v ...any)                  { z.sugar.Warn(v...) }
func (z *zapLogger) Warnf(format string, v ...any)  { z.sugar.Warnf(format, v...) }
func (z *zapLogger) Error(v ...any)                 { z.sugar.Error(v...) }
func (z *zapLogger) Errorf(format string, v ...any) { z.sugar.Errorf(format, v...) }
func (z *zapLogger) Fatal(v ...any)                 { z.sugar.Fatal(v...) }
func (z *zapLogger) Fatalf(format string, v ...any) { z.sugar.Fatalf(format, v...) }
func (z *zapLogger) Panic(v ...any)                 { z.sugar.Panic(v...) }
func (z *zapLogger) Panicf(format string, v ...any) { z.sugar.Panicf(format, v...) }
func (z *zapLogger) Debug(v ...any)                 { z.sugar.Debug(v...) }
func (z *zapLogger) Debugf(format string, v ...any) { z.sugar.Debugf(format, v...) }

func (z *zapLogger) With(fields ...any) Logger {
	return &zapLogger{level: z.level, sugar: z.sugar.With(fields...), writers: z.writers}
}

func (z *zapLogger) LogLevel() Level       { return z.level }
func (z *zapLogger) LogOutput() []io.Writer { return z.writers }

func (z *zapLogger) StdLogger() *golog.Logger {
	l, _ := zap.NewStdLogAt(z.sugar.Desugar(), levelToZap[z.level])
	return l
}

// discardLogger implements Logger by discarding every message.
type discardLogger struct{}

var _ Logger = discardLogger{}

func (discardLogger) Info(...any)          {}
func (discardLogger) Infof(string, ...any) {}
func (discardLogger) Warn(...any)          {}
func (discardLogger) Warnf(string, ...any) {}
func (discardLogger) Error(...any)         {}
func (discardLogger) Errorf(string, ...any) {}
func (discardLogger) Fatal(...any)          {}
func (discardLogger) Fatalf(string, ...any) {}
func (discardLogger) Panic(...any)          {}
func (discardLogger) Panicf(string, ...any) {}
func (discardLogger) Debug(...any)          {}
func (discardLogger) Debugf(string, ...any) {}
func (discardLogger) With(...any) Logger    { return discardLogger{} }
func (discardLogger) LogLevel() Level       { return InfoLevel }
func (discardLogger) LogOutput() []io.Writer {
	return []io.Writer{io.Discard}
}
func (discardLogger) StdLogger() *golog.Logger {
	return golog.New(io.Discard, "", 0)
}
