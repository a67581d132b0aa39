// Package logutils holds the shared logrus logger. klog is reserved for
// process bootstrap; everything past startup logs through Log.
package logutils

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Fields aliases logrus.Fields for call sites attaching structured context.
type Fields = logrus.Fields

// Log is the process-wide logger shared by handlers and workflows.
var Log = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:             true,
		TimestampFormat:           "2006-01-02 15:04:05",
		ForceColors:               true,
		EnvironmentOverrideColors: true,
	})
	l.SetReportCaller(true)
	// Debug builds get debug logs; the logrus default of info covers release.
	if gin.Mode() == gin.DebugMode {
		l.SetLevel(logrus.DebugLevel)
	}
	return l
}
