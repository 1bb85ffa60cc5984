package ui

import (
	"encoding/json"

	"github.com/rs/zerolog"
)

// LogWriter forwards warnings and errors to the dashboard's log panel.
// Pass it to the logger in place of stderr while the dashboard owns the
// terminal.
type LogWriter struct {
	send func(msg any)
}

func NewLogWriter() *LogWriter {
	return &LogWriter{send: func(msg any) { Send(msg) }}
}

func (w *LogWriter) Write(p []byte) (int, error) {
	return w.WriteLevel(zerolog.NoLevel, p)
}

// WriteLevel implements zerolog.LevelWriter.
func (w *LogWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < zerolog.WarnLevel || level == zerolog.NoLevel {
		return len(p), nil
	}
	var line map[string]any
	if err := json.Unmarshal(p, &line); err != nil {
		return len(p), nil
	}
	msg, _ := line[zerolog.MessageFieldName].(string)
	if errText, ok := line[zerolog.ErrorFieldName].(string); ok {
		msg += ": " + errText
	}
	w.send(LogMsg{Level: level.String(), Message: msg})
	return len(p), nil
}
