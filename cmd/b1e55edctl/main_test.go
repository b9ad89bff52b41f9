package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRun_Help(t *testing.T) {
	var stdout, stderr bytes.Buffer

	exitCode := Run([]string{"b1e55edctl", "help"}, &stdout, &stderr)

	assert.Equal(t, 0, exitCode)
	assert.Contains(t, stdout.String(), "Usage: b1e55edctl")
}

func TestRun_NoArgs_PrintsUsageAndFails(t *testing.T) {
	var stdout, stderr bytes.Buffer

	exitCode := Run([]string{"b1e55edctl"}, &stdout, &stderr)

	assert.Equal(t, 2, exitCode)
	assert.Contains(t, stderr.String(), "Usage: b1e55edctl")
}

func TestRun_UnknownCommand_Fails(t *testing.T) {
	var stdout, stderr bytes.Buffer

	exitCode := Run([]string{"b1e55edctl", "not-a-real-command"}, &stdout, &stderr)

	assert.Equal(t, 2, exitCode)
}

func TestRunVerifyCmd_MissingTrustedKey_Fails(t *testing.T) {
	var stdout, stderr bytes.Buffer

	exitCode := runVerifyCmd([]string{}, &stdout, &stderr)

	assert.Equal(t, 2, exitCode)
	assert.Contains(t, stderr.String(), "--trusted-key is required")
}

func TestRunEventCmd_MissingType_Fails(t *testing.T) {
	var stdout, stderr bytes.Buffer

	exitCode := runEventCmd([]string{}, &stdout, &stderr)

	assert.Equal(t, 2, exitCode)
	assert.Contains(t, stderr.String(), "--type is required")
}

func TestRunReplayCmd_EmptyLogIsTriviallyEquivalent(t *testing.T) {
	var stdout, stderr bytes.Buffer

	exitCode := runReplayCmd([]string{"--event-log-dir", t.TempDir()}, &stdout, &stderr)

	assert.Equal(t, 0, exitCode)
	assert.Contains(t, stdout.String(), "EQUIVALENT")
}
