package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a zap logger that writes JSON to the given log file path
// and also writes to stderr. Session name and PID are included as initial fields.
func New(logPath, sessionName string) (*zap.Logger, error) {
	fileCore, encoderCfg, err := newFileCore(logPath)
	if err != nil {
		return nil, err
	}
	consoleEncoder := zapcore.NewConsoleEncoder(encoderCfg)
	stderrCore := zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stderr), zapcore.InfoLevel)

	return withSessionFields(zapcore.NewTee(fileCore, stderrCore), sessionName), nil
}

// NewFileOnly is New without the stderr core, for programs that own the terminal.
func NewFileOnly(logPath, sessionName string) (*zap.Logger, error) {
	fileCore, _, err := newFileCore(logPath)
	if err != nil {
		return nil, err
	}
	return withSessionFields(fileCore, sessionName), nil
}

func newFileCore(logPath string) (zapcore.Core, zapcore.EncoderConfig, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	if err := os.MkdirAll(filepath.Dir(logPath), 0700); err != nil {
		return nil, encoderCfg, err
	}
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, encoderCfg, err
	}

	jsonEncoder := zapcore.NewJSONEncoder(encoderCfg)
	return zapcore.NewCore(jsonEncoder, zapcore.AddSync(file), zapcore.DebugLevel), encoderCfg, nil
}

func withSessionFields(core zapcore.Core, sessionName string) *zap.Logger {
	return zap.New(core,
		zap.Fields(
			zap.String("session", sessionName),
			zap.Int("pid", os.Getpid()),
		),
	)
}
