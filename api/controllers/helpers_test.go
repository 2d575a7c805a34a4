package controllers

import (
	"io"

	"github.com/angelmondragon/digimart-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}
