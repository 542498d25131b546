package password

import (
	"os"
	"strings"
	"testing"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range envKnobs {
		if v, ok := os.LookupEnv(k.key); ok {
			t.Cleanup(func() { _ = os.Setenv(k.key, v) })
			_ = os.Unsetenv(k.key)
		}
	}

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}

	def := DefaultConfig()
	if cfg.Policy.MinLength != def.Policy.MinLength {
		t.Fatalf("min length mismatch")
	}
	if cfg.Params.MemoryKiB != def.Params.MemoryKiB {
		t.Fatalf("memory mismatch")
	}
}

func TestFromEnv_Override(t *testing.T) {
	t.Setenv("CHAT_PASSWORD_MIN_LEN", "10")
	t.Setenv("CHAT_PASSWORD_MAX_LEN", "200")
	t.Setenv("CHAT_PASSWORD_REJECT_VERY_WEAK", "true")
	t.Setenv("CHAT_ARGON2_MEMORY_KIB", "32768")
	t.Setenv("CHAT_ARGON2_ITERATIONS", "4")
	t.Setenv("CHAT_ARGON2_PARALLELISM", "2")
	t.Setenv("CHAT_ARGON2_SALT_LEN", "24")
	t.Setenv("CHAT_ARGON2_KEY_LEN", "32")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}

	if cfg.Policy.MinLength != 10 || cfg.Policy.MaxLength != 200 || !cfg.Policy.RejectVeryWeak {
		t.Fatalf("policy override failed: %+v", cfg.Policy)
	}
	if cfg.Params.MemoryKiB != 32768 || cfg.Params.Iterations != 4 || cfg.Params.Parallelism != 2 {
		t.Fatalf("argon2 override failed: %+v", cfg.Params)
	}
	if cfg.Params.SaltLength != 24 || cfg.Params.KeyLength != 32 {
		t.Fatalf("len override failed: %+v", cfg.Params)
	}
}

func TestFromEnv_InvalidMinMax(t *testing.T) {
	t.Setenv("CHAT_PASSWORD_MIN_LEN", "20")
	t.Setenv("CHAT_PASSWORD_MAX_LEN", "10")

	_, err := FromEnv()
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestFromEnv_RejectsOutOfRange(t *testing.T) {
	cases := map[string]string{
		"CHAT_ARGON2_MEMORY_KIB":         "1024",
		"CHAT_ARGON2_PARALLELISM":        "0",
		"CHAT_ARGON2_SALT_LEN":           "many",
		"CHAT_PASSWORD_REJECT_VERY_WEAK": "sometimes",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			_, err := FromEnv()
			if err == nil || !strings.HasPrefix(err.Error(), key+":") {
				t.Fatalf("expected %s error, got %v", key, err)
			}
		})
	}
}
