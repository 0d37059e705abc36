package ratelimit

import (
	"testing"
	"time"
)

var (
	_ Limiter = (*MemoryLimiter)(nil)
	_ Limiter = (*RedisLimiter)(nil)
)

func TestConfig_WithDefaults(t *testing.T) {
	tests := []struct {
		name string
		in   Config
		want Config
	}{
		{name: "zero value", in: Config{}, want: Config{Requests: 10, Window: time.Minute}},
		{name: "negative", in: Config{Requests: -1, Window: -time.Second}, want: Config{Requests: 10, Window: time.Minute}},
		{name: "custom", in: Config{Requests: 3, Window: time.Second}, want: Config{Requests: 3, Window: time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.withDefaults(); got != tt.want {
				t.Errorf("withDefaults() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecision_RetryAfterSeconds(t *testing.T) {
	tests := []struct {
		retryAfter time.Duration
		want       string
	}{
		{0, "1"},
		{300 * time.Millisecond, "1"},
		{time.Second, "1"},
		{1500 * time.Millisecond, "2"},
		{20 * time.Second, "20"},
	}

	for _, tt := range tests {
		d := Decision{RetryAfter: tt.retryAfter}
		if got := d.RetryAfterSeconds(); got != tt.want {
			t.Errorf("RetryAfterSeconds(%v) = %s, want %s", tt.retryAfter, got, tt.want)
		}
	}
}
