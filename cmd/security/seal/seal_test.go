package seal

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func testKey() []byte { return bytes.Repeat([]byte{7}, 32) }

func TestSealOpenRoundTrip(t *testing.T) {
	t.Parallel()

	s, err := New(testKey())
	require.NoError(t, err)

	sealed, err := s.Seal("enc_access_token", "a1")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(sealed, "v1."))
	require.NotContains(t, sealed, "a1")

	plain, err := s.Open("enc_access_token", sealed)
	require.NoError(t, err)
	require.Equal(t, "a1", plain)

	again, err := s.Seal("enc_access_token", "a1")
	require.NoError(t, err)
	require.NotEqual(t, sealed, again, "nonce must differ per seal")
}

func TestOpenRejectsWrongSlotAndTampering(t *testing.T) {
	t.Parallel()

	s, err := New(testKey())
	require.NoError(t, err)

	sealed, err := s.Seal("enc_access_token", "a1")
	require.NoError(t, err)

	_, err = s.Open("enc_refresh_token", sealed)
	require.ErrorIs(t, err, ErrOpen)

	raw, err := b64.DecodeString(strings.TrimPrefix(sealed, "v1."))
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	_, err = s.Open("enc_access_token", "v1."+b64.EncodeToString(raw))
	require.ErrorIs(t, err, ErrOpen)

	_, err = s.Open("enc_access_token", "plain-value")
	require.ErrorIs(t, err, ErrMalformed)

	other, err := New(bytes.Repeat([]byte{9}, 32))
	require.NoError(t, err)
	_, err = other.Open("enc_access_token", sealed)
	require.ErrorIs(t, err, ErrOpen)
}

func TestNewRejectsBadKey(t *testing.T) {
	t.Parallel()

	_, err := New([]byte("short"))
	require.ErrorIs(t, err, ErrKeySize)
}

func TestPassphraseFromEnv(t *testing.T) {
	t.Setenv(PassphraseEnvKey, "")
	_, err := PassphraseFromEnv(MinPassphraseBytes)
	require.ErrorIs(t, err, ErrPassphraseMissing)
	require.False(t, Enabled())

	t.Setenv(PassphraseEnvKey, "short")
	_, err = PassphraseFromEnv(MinPassphraseBytes)
	require.ErrorIs(t, err, ErrPassphraseTooShort)
	require.True(t, Enabled())

	t.Setenv(PassphraseEnvKey, "  a long enough passphrase  ")
	got, err := PassphraseFromEnv(MinPassphraseBytes)
	require.NoError(t, err)
	require.Equal(t, "a long enough passphrase", got)
}
