package ldlog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flagcore/flagcore-go/internal/ldlog"
)

func TestNewDefaultLoggersNilsOutDestinationsBelowMinLevel(t *testing.T) {
	loggers := ldlog.NewDefaultLoggers(ldlog.Warn)
	assert.Nil(t, loggers.Debug)
	assert.Nil(t, loggers.Info)
	assert.NotNil(t, loggers.Warn)
	assert.NotNil(t, loggers.Error)
}

func TestNewDefaultLoggersEnablesEverythingAtDebug(t *testing.T) {
	loggers := ldlog.NewDefaultLoggers(ldlog.Debug)
	assert.NotNil(t, loggers.Debug)
	assert.NotNil(t, loggers.Info)
	assert.NotNil(t, loggers.Warn)
	assert.NotNil(t, loggers.Error)
	assert.True(t, loggers.IsDebugEnabled())
}

func TestNewDisabledLoggersSilencesEverything(t *testing.T) {
	loggers := ldlog.NewDisabledLoggers()
	assert.Nil(t, loggers.Debug)
	assert.Nil(t, loggers.Info)
	assert.Nil(t, loggers.Warn)
	assert.Nil(t, loggers.Error)
	assert.False(t, loggers.IsDebugEnabled())

	// Calling through a fully-disabled Loggers must not panic.
	loggers.Debugf("x")
	loggers.Infof("x")
	loggers.Warnf("x")
	loggers.Errorf("x")
}

func TestLevelStringNames(t *testing.T) {
	assert.Equal(t, "DEBUG", ldlog.Debug.String())
	assert.Equal(t, "INFO", ldlog.Info.String())
	assert.Equal(t, "WARN", ldlog.Warn.String())
	assert.Equal(t, "ERROR", ldlog.Error.String())
	assert.Equal(t, "NONE", ldlog.None.String())
}
