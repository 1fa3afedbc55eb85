package logger

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevOut, prevFlags := log.Writer(), log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(prevOut)
		log.SetFlags(prevFlags)
	})
	return &buf
}

func TestStdLoggerLevels(t *testing.T) {
	buf := captureOutput(t)
	l := NewStdLogger(false, NoticeLevel)

	l.Debug("debug %d", 1)
	l.Info("info %d", 2)
	l.Notice("notice %d", 3)
	l.Error("error %d", 4)

	out := buf.String()
	assert.NotContains(t, out, "debug 1")
	assert.NotContains(t, out, "info 2")
	assert.Contains(t, out, "[NOTICE] notice 3")
	assert.Contains(t, out, "[ERROR]  error 4")
}

func TestStdLoggerRunPrefix(t *testing.T) {
	buf := captureOutput(t)
	l := NewStdLogger(false, DebugLevel)

	l.InfoWithRun("run_1234abcd", "phase %s", "Submitting")

	assert.Contains(t, buf.String(), "[INFO]   [run_1234abcd] phase Submitting")
}

func TestRunColorIsStable(t *testing.T) {
	assert.Equal(t, runColor("run_a"), runColor("run_a"))
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, DebugLevel, level)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}
