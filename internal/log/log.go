// Package log configures the shared logrus logger used by every binary in
// this module.
package log

import (
	log "github.com/sirupsen/logrus"
	"github.com/yukitsune/lokirus"

	"github.com/leandrosilva/wkpdfcluster/internal/config"
)

const timestampFormat = "2006-01-02 15:04:05"

// Initialize sets the global logrus level, formatter, and (if configured) a
// Loki push hook. An unrecognized level leaves the current level untouched
// rather than panicking, since this runs before any flag/config validation
// has had a chance to reject bad input.
func Initialize(cfg config.LogConfig) {
	if cfg.Level != "" {
		if level, err := log.ParseLevel(cfg.Level); err == nil {
			log.SetLevel(level)
		}
	}

	if cfg.Formatter == "json" {
		log.SetFormatter(&log.JSONFormatter{
			TimestampFormat: timestampFormat,
		})
	} else {
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: timestampFormat,
		})
	}

	if cfg.Loki.Address != "" {
		hook := lokirus.NewLokiHookWithOpts(
			cfg.Loki.Address,
			lokirus.NewLokiHookOptions().
				WithLevelMap(lokirus.LevelMap{
					log.InfoLevel:  "info",
					log.WarnLevel:  "warning",
					log.ErrorLevel: "error",
					log.FatalLevel: "fatal",
				}).
				WithStaticLabels(lokirus.Labels(cfg.Loki.Labels)),
			log.InfoLevel, log.WarnLevel, log.ErrorLevel, log.FatalLevel,
		)
		log.AddHook(hook)
	}
}
