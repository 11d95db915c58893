package ui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatRate(t *testing.T) {
	tests := []struct {
		input float64
		want  string
	}{
		{0, "0 B/s"},
		{-1, "0 B/s"},
		{512, "512 B/s"},
		{1024, "1.0 KiB/s"},
		{1.5 * 1024 * 1024, "1.5 MiB/s"},
		{100 * 1024, "100 KiB/s"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatRate(tt.input))
		})
	}
}

func TestFormatETA(t *testing.T) {
	tests := []struct {
		input time.Duration
		want  string
	}{
		{0, "--"},
		{-1 * time.Second, "--"},
		{30 * time.Second, "30s"},
		{90 * time.Second, "1m 30s"},
		{3661 * time.Second, "1h 01m 01s"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatETA(tt.input))
		})
	}
}

func TestFormatCount(t *testing.T) {
	assert.Equal(t, "0", FormatCount(0))
	assert.Equal(t, "999", FormatCount(999))
	assert.Equal(t, "1,000,000", FormatCount(1000000))
	assert.Equal(t, "-1,000", FormatCount(-1000))
}

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "▪▪▪▪▪□□□□□", ProgressBar(0.5, 10))
	assert.Equal(t, "□□□□□□□□□□", ProgressBar(0, 10))
	assert.Equal(t, "▪▪▪▪▪▪▪▪▪▪", ProgressBar(1.0, 10))
	assert.Equal(t, "", ProgressBar(0.5, 0))
	assert.Equal(t, "▪▪▪▪▪▪▪▪▪▪", ProgressBar(1.5, 10))
	assert.Equal(t, "□□□□", ProgressBar(-1, 4))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0s", FormatDuration(0))
	assert.Equal(t, "3m 17s", FormatDuration(3*time.Minute+17*time.Second))
	assert.Equal(t, "1h 02m 03s", FormatDuration(1*time.Hour+2*time.Minute+3*time.Second))
}

func TestFormatWhen(t *testing.T) {
	assert.Equal(t, "never", FormatWhen(time.Time{}))
	assert.Equal(t, "3 hours ago", FormatWhen(time.Now().Add(-3*time.Hour)))
}
