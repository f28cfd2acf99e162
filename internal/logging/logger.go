// Package logging は logrus のロガーを設定から組み立てます。
package logging

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/sumqueue/internal/config"
)

// LoggerName はログ行に付与するロガー名です。
const LoggerName = "sumqueue"

// New は設定に従ってロガーを作成します。
// 戻り値の cleanup はバッファに残ったログを書き出してファイルを閉じます。
func New(cfg *config.Config) (*logrus.Logger, func(), error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	logger.SetLevel(level)

	switch cfg.LogFormat {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05.000",
			DisableColors:   cfg.LogOutput == "file",
		})
	}

	if cfg.LogOutput != "file" {
		logger.SetOutput(os.Stdout)
		return logger, func() {}, nil
	}

	rotating, err := NewRotatingWriter(cfg.LogDir, cfg.LogFile, cfg.LogRetentionDays)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	async := NewAsyncWriter(rotating, 0)
	logger.SetOutput(async)

	cleanup := func() {
		_ = async.Close()
		_ = rotating.Close()
	}
	return logger, cleanup, nil
}

// Named はロガー名を付与したエントリーを返します。
func Named(logger logrus.FieldLogger) *logrus.Entry {
	return logger.WithField("logger", LoggerName)
}
