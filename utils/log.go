package utils

import (
	"github.com/sirupsen/logrus"
)

// Log is the shared logger of rayfleet
var Log *logrus.Logger

func init() {
	Log = logrus.New()
	Log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:          true,
		DisableLevelTruncation: true,
		PadLevelText:           true,
	})
	// Level comes from main after config load; do not touch Config here to
	// avoid an import circle
}
