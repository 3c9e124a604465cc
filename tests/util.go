package testutil

import (
	"io"
	"log"

	"github.com/gachaupg/shuletrack/core"
	logsvc "github.com/gachaupg/shuletrack/services/logger"
)

// NewLogger returns a logger that reports nowhere.
func NewLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	logger.Enable(false)
	return logger
}
