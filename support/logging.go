package support

import (
	"github.com/rs/zerolog"
	"github.com/sirupsen/logrus"
)

// ConfigureLogging applies the configured level to both the zerolog and
// logrus loggers.
func ConfigureLogging(cfg Config) error {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(level)

	lr, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logrus.SetLevel(lr)

	return nil
}
