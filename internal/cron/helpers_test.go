package cron

import (
	"bytes"

	"github.com/angelmondragon/digimart-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: &bytes.Buffer{}})
}
