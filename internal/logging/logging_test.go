package logging

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLogFilePath(t *testing.T) {
	start := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	tests := []struct {
		name    string
		logsDir string
		want    string
	}{
		{"relative", "logs", filepath.Join("logs", "simcore.20260304_050607.log")},
		{"dotted", "./logs", filepath.Join(".", "logs", "simcore.20260304_050607.log")},
		{"absolute", filepath.Join("/var", "log", "simcore"), filepath.Join("/var", "log", "simcore", "simcore.20260304_050607.log")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LogFilePath(tt.logsDir, "simcore", start))
		})
	}
}
