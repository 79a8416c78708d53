package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/fansqz/pdb-debugger/config"
)

var logFile *os.File

// SetupLogger 配置logrus，没有配置日志文件时输出到stderr
func SetupLogger(c config.LogConfig) error {
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	if c.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if c.Path == "" {
		logrus.SetOutput(os.Stderr)
		return nil
	}
	if err = os.MkdirAll(filepath.Dir(c.Path), 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	logFile, err = os.OpenFile(c.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	logrus.SetOutput(logFile)
	return nil
}

// QuietLogger drops log output unless a log file is configured.
// Interactive commands own the terminal.
func QuietLogger() {
	if logFile == nil {
		logrus.SetOutput(io.Discard)
	}
}

func CloseLogger() {
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}
