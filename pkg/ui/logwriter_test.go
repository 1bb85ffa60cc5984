package ui

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogWriter_ForwardsWarningsAndErrors(t *testing.T) {
	var got []LogMsg
	w := &LogWriter{send: func(msg any) { got = append(got, msg.(LogMsg)) }}
	log := zerolog.New(w)

	log.Info().Msg("scan completed")
	log.Warn().Msg("quote stale")
	log.Error().Err(errors.New("connection refused")).Msg("rpc failed")

	require.Len(t, got, 2)
	assert.Equal(t, LogMsg{Level: "warn", Message: "quote stale"}, got[0])
	assert.Equal(t, LogMsg{Level: "error", Message: "rpc failed: connection refused"}, got[1])
}

func TestLogWriter_IgnoresUnparseableLines(t *testing.T) {
	called := false
	w := &LogWriter{send: func(any) { called = true }}

	n, err := w.WriteLevel(zerolog.ErrorLevel, []byte("not json"))
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.False(t, called)
}
