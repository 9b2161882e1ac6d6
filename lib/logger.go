package lib

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/ziflex/lecho/v3"
)

// Logger writes to STDOUT, or to a dated file when logFilePath is set.
func Logger(logFilePath string) *lecho.Logger {
	logger := lecho.New(
		os.Stdout,
		lecho.WithLevel(log.DEBUG),
		lecho.WithTimestamp(),
	)
	if logFilePath != "" {
		file, err := GetLoggingFile(logFilePath, time.Now())
		if err != nil {
			logger.Errorf("failed to create logging file: %v", err)
			return logger
		}
		logger.SetOutput(file)
	}

	return logger
}

// GetLoggingFile creates path with the date inserted before the extension:
// /var/log/evmhub.log becomes /var/log/evmhub-2024-10-14.log
func GetLoggingFile(path string, now time.Time) (*os.File, error) {
	return os.OpenFile(datedPath(path, now), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0664)
}

func datedPath(path string, now time.Time) string {
	extension := filepath.Ext(path)
	date := now.Format("-2006-01-02")
	if extension == "" {
		return path + date + ".log"
	}
	return strings.TrimSuffix(path, extension) + date + extension
}
