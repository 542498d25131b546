package credential

import (
	"context"
	"errors"
	"testing"

	"github.com/mladen081/u-m/cmd/identity"
	"github.com/stretchr/testify/require"
)

func TestVault_WriteReadClear(t *testing.T) {
	t.Parallel()

	v := NewVault()

	_, ok := v.Read()
	require.False(t, ok)

	alice := identity.Principal{ID: 7, Username: "alice"}
	require.NoError(t, v.Write(Pair{Access: "a1", Refresh: "r1"}, &alice))

	pair, ok := v.Read()
	require.True(t, ok)
	require.Equal(t, Pair{Access: "a1", Refresh: "r1"}, pair)

	p, ok := v.ReadPrincipal()
	require.True(t, ok)
	require.Equal(t, alice, p)

	require.NoError(t, v.Clear())
	_, ok = v.Read()
	require.False(t, ok)
	_, ok = v.ReadPrincipal()
	require.False(t, ok)
	_, ok = v.AccessToken()
	require.False(t, ok)

	require.NoError(t, v.Clear(), "clear is idempotent")
}

func TestVault_UpdateAccessKeepsRefreshAndPrincipal(t *testing.T) {
	t.Parallel()

	v := NewVault()
	alice := identity.Principal{ID: 7, Username: "alice"}
	require.NoError(t, v.Write(Pair{Access: "a1", Refresh: "r1"}, &alice))

	require.NoError(t, v.UpdateAccess("a2"))
	pair, ok := v.Read()
	require.True(t, ok)
	require.Equal(t, Pair{Access: "a2", Refresh: "r1"}, pair)

	p, ok := v.ReadPrincipal()
	require.True(t, ok)
	require.Equal(t, "alice", p.Username)

	require.ErrorIs(t, v.UpdateAccess(""), ErrEmptyToken)
}

func TestVault_WriteNilPrincipalKeepsExisting(t *testing.T) {
	t.Parallel()

	v := NewVault()
	alice := identity.Principal{ID: 7, Username: "alice"}
	require.NoError(t, v.Write(Pair{Access: "a1", Refresh: "r1"}, &alice))
	require.NoError(t, v.Write(Pair{Access: "a2", Refresh: "r2"}, nil))

	p, ok := v.ReadPrincipal()
	require.True(t, ok)
	require.Equal(t, alice, p)
}

func TestVault_WriteRejectsIncompletePair(t *testing.T) {
	t.Parallel()

	v := NewVault()
	require.ErrorIs(t, v.Write(Pair{Access: "a1"}, nil), ErrIncompletePair)
	_, ok := v.AccessToken()
	require.False(t, ok)
}

func TestVault_PersistsThroughBackend(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := NewMemoryBackend()

	v, err := Open(ctx, backend)
	require.NoError(t, err)
	alice := identity.Principal{ID: 7, Username: "alice"}
	require.NoError(t, v.Write(Pair{Access: "a1", Refresh: "r1"}, &alice))
	require.NoError(t, v.UpdateAccess("a2"))

	reopened, err := Open(ctx, backend)
	require.NoError(t, err)
	pair, ok := reopened.Read()
	require.True(t, ok)
	require.Equal(t, Pair{Access: "a2", Refresh: "r1"}, pair)
	p, ok := reopened.ReadPrincipal()
	require.True(t, ok)
	require.Equal(t, alice, p)

	require.NoError(t, reopened.Clear())
	slots, err := backend.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, slots)
}

func TestVault_ClearStandsWhenBackendFails(t *testing.T) {
	t.Parallel()

	backend := &failingBackend{}
	v, err := Open(context.Background(), backend)
	require.NoError(t, err)

	// Seed memory directly; the backend refuses every write.
	v.slots[SlotAccess] = "a1"
	v.slots[SlotRefresh] = "r1"

	err = v.Clear()
	require.Error(t, err)
	_, ok := v.Read()
	require.False(t, ok, "in-memory clear must stand")
}

func TestVault_UndecodablePrincipalIsAbsent(t *testing.T) {
	t.Parallel()

	backend := NewMemoryBackend()
	require.NoError(t, backend.Apply(context.Background(), map[string]string{
		SlotAccess:    "a1",
		SlotRefresh:   "r1",
		SlotPrincipal: "{not json",
	}, nil))

	v, err := Open(context.Background(), backend)
	require.NoError(t, err)
	_, ok := v.ReadPrincipal()
	require.False(t, ok)
	_, ok = v.Read()
	require.True(t, ok)
}

type failingBackend struct{}

func (failingBackend) Load(context.Context) (map[string]string, error) { return nil, nil }

func (failingBackend) Apply(context.Context, map[string]string, []string) error {
	return errors.New("disk full")
}
