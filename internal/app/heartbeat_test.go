package app

import (
	"testing"
	"time"

	"github.com/MrWong99/voicesteer/internal/config"
)

func TestHeartbeatMaxAge(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Audio: config.AudioConfig{SegmentDuration: time.Second},
		Recognition: config.RecognitionConfig{
			Debounce:      100 * time.Millisecond,
			CaptureRetry:  500 * time.Millisecond,
			EngineTimeout: 8 * time.Second,
		},
	}

	tests := []struct {
		engines int
		want    time.Duration
	}{
		{1, time.Second + 8*time.Second + 600*time.Millisecond + heartbeatSlack},
		{2, time.Second + 16*time.Second + 600*time.Millisecond + heartbeatSlack},
	}
	for _, tt := range tests {
		if got := heartbeatMaxAge(cfg, tt.engines); got != tt.want {
			t.Errorf("heartbeatMaxAge(%d engines) = %s, want %s", tt.engines, got, tt.want)
		}
	}
}
