package credential

import (
	"context"
	"maps"
	"sync"
)

// Slot keys. They match the names the browser client used so stores can be inspected side by side.
const (
	SlotAccess    = "enc_access_token"
	SlotRefresh   = "enc_refresh_token"
	SlotPrincipal = "user_data"

	// SlotSealSalt holds the key-derivation salt for SealedBackend. It is never sealed
	// and Vault never touches it.
	SlotSealSalt = "seal_salt"
)

// Slots lists every slot Vault manages, in a stable order.
var Slots = []string{SlotAccess, SlotRefresh, SlotPrincipal}

// Backend persists slot values for one profile.
//
// Apply must be atomic: either every set and delete lands, or none does.
type Backend interface {
	Load(ctx context.Context) (map[string]string, error)
	Apply(ctx context.Context, set map[string]string, del []string) error
}

// MemoryBackend is a process-local Backend.
type MemoryBackend struct {
	mu    sync.Mutex
	slots map[string]string
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{slots: map[string]string{}}
}

func (b *MemoryBackend) Load(_ context.Context) (map[string]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return maps.Clone(b.slots), nil
}

func (b *MemoryBackend) Apply(_ context.Context, set map[string]string, del []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, k := range del {
		delete(b.slots, k)
	}
	maps.Copy(b.slots, set)
	return nil
}
