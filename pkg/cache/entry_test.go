package cache

import (
	"testing"
	"time"
)

func TestEntry_IsExpiredAt(t *testing.T) {
	now := time.Now()
	entry := newEntry("value", now, time.Minute)

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{name: "at insertion", at: now, want: false},
		{name: "just before expiry", at: now.Add(time.Minute - time.Millisecond), want: false},
		{name: "at expiry", at: now.Add(time.Minute), want: true},
		{name: "after expiry", at: now.Add(2 * time.Minute), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := entry.IsExpiredAt(tt.at); got != tt.want {
				t.Errorf("IsExpiredAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntry_TTL(t *testing.T) {
	live := newEntry(1, time.Now(), 5*time.Minute)
	if ttl := live.TTL(); ttl <= 4*time.Minute || ttl > 5*time.Minute {
		t.Errorf("Expected TTL close to 5m, got %v", ttl)
	}

	expired := newEntry(1, time.Now().Add(-time.Hour), time.Minute)
	if ttl := expired.TTL(); ttl != 0 {
		t.Errorf("Expected TTL 0 for expired entry, got %v", ttl)
	}
}

func TestKey(t *testing.T) {
	tests := []struct {
		userID string
		want   string
	}{
		{"123", "123_all"},
		{" 123 ", " 123 _all"},
		{"", "_all"},
	}

	for _, tt := range tests {
		if got := Key(tt.userID); got != tt.want {
			t.Errorf("Key(%q) = %q, want %q", tt.userID, got, tt.want)
		}
	}

	if redisKey(Key("42")) != "gamepasses:42_all" {
		t.Errorf("Unexpected redis key %q", redisKey(Key("42")))
	}
}
