package domain_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/doeshing/sentry-go/internal/domain"
)

func TestBehavior_Getters(t *testing.T) {
	tests := []struct {
		name      string
		behavior  domain.Behavior
		scheme    domain.Scheme
		write     domain.ImpactLevel
		edit      domain.ImpactLevel
		failSafe  domain.FailSafe
		timeout   time.Duration
		cacheSize int
	}{
		{
			name:      "zero value falls back to safe defaults",
			behavior:  domain.Behavior{},
			scheme:    domain.SchemeThreeLevel,
			write:     domain.ImpactMedium,
			edit:      domain.ImpactLow,
			failSafe:  domain.FailSafeHigh,
			timeout:   domain.DefaultAITimeout,
			cacheSize: domain.DefaultCacheSize,
		},
		{
			name: "explicit values are kept",
			behavior: domain.Behavior{
				Scheme:     domain.SchemeYOLO,
				WriteLevel: domain.ImpactLow,
				EditLevel:  domain.ImpactMedium,
				FailSafe:   domain.FailSafeBlock,
				AITimeout:  domain.Duration(3 * time.Second),
				CacheSize:  10,
			},
			scheme:    domain.SchemeYOLO,
			write:     domain.ImpactLow,
			edit:      domain.ImpactMedium,
			failSafe:  domain.FailSafeBlock,
			timeout:   3 * time.Second,
			cacheSize: 10,
		},
		{
			name:      "unknown values are ignored",
			behavior:  domain.Behavior{Scheme: "four-level", WriteLevel: "extreme", FailSafe: "pass"},
			scheme:    domain.SchemeThreeLevel,
			write:     domain.ImpactMedium,
			edit:      domain.ImpactLow,
			failSafe:  domain.FailSafeHigh,
			timeout:   domain.DefaultAITimeout,
			cacheSize: domain.DefaultCacheSize,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.behavior.GetScheme(); got != tt.scheme {
				t.Fatalf("scheme = %s, want %s", got, tt.scheme)
			}
			if got := tt.behavior.GetWriteLevel(); got != tt.write {
				t.Fatalf("write level = %s, want %s", got, tt.write)
			}
			if got := tt.behavior.GetEditLevel(); got != tt.edit {
				t.Fatalf("edit level = %s, want %s", got, tt.edit)
			}
			if got := tt.behavior.GetFailSafe(); got != tt.failSafe {
				t.Fatalf("fail safe = %s, want %s", got, tt.failSafe)
			}
			if got := tt.behavior.GetAITimeout(); got != tt.timeout {
				t.Fatalf("timeout = %s, want %s", got, tt.timeout)
			}
			if got := tt.behavior.GetCacheSize(); got != tt.cacheSize {
				t.Fatalf("cache size = %d, want %d", got, tt.cacheSize)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := domain.DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}

	cfg.Level = domain.PermissionYOLO
	if err := cfg.Validate(); !errors.Is(err, domain.ErrInvalidLevel) {
		t.Fatalf("yolo level under three-level scheme should fail, got %v", err)
	}

	cfg.Behavior.Scheme = domain.SchemeYOLO
	if err := cfg.Validate(); err != nil {
		t.Fatalf("yolo level under yolo scheme should validate: %v", err)
	}
}

func TestConfig_GetCycleShortcut(t *testing.T) {
	if got := (domain.Config{}).GetCycleShortcut(); got != "shift+tab" {
		t.Fatalf("default shortcut = %q", got)
	}
	if got := (domain.Config{CycleShortcut: "ctrl+p"}).GetCycleShortcut(); got != "ctrl+p" {
		t.Fatalf("shortcut = %q", got)
	}
}

func TestDuration_JSON(t *testing.T) {
	var d domain.Duration
	if err := json.Unmarshal([]byte(`"1m30s"`), &d); err != nil {
		t.Fatalf("unmarshal string: %v", err)
	}
	if time.Duration(d) != 90*time.Second {
		t.Fatalf("duration = %s", time.Duration(d))
	}
	if err := json.Unmarshal([]byte(`1500`), &d); err != nil {
		t.Fatalf("unmarshal millis: %v", err)
	}
	if time.Duration(d) != 1500*time.Millisecond {
		t.Fatalf("duration = %s", time.Duration(d))
	}
	if err := json.Unmarshal([]byte(`"soon"`), &d); err == nil {
		t.Fatalf("expected error for invalid duration")
	}
	out, err := json.Marshal(domain.Duration(20 * time.Second))
	if err != nil || string(out) != `"20s"` {
		t.Fatalf("marshal = %s, %v", out, err)
	}
}
