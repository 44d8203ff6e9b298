package winvault

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVault(t *testing.T, path string) (*KeyVault, *xorCipher) {
	t.Helper()
	cipher := &xorCipher{key: 0x3C}
	vault, err := NewKeyVaultWithCipher(cipher, path, nil)
	require.NoError(t, err)
	return vault, cipher
}

func testRecords() map[string]*KeyRecord {
	return map[string]*KeyRecord{
		"key-1": {
			ID:               "key-1",
			Key:              []byte("first-key-material"),
			Attributes:       map[string][]string{"purpose": {"signing"}},
			IssuedServerTime: 1700000000,
		},
		"key-2": {
			ID:                   "key-2",
			Key:                  []byte("second-key-material"),
			IssuedServerTime:     1700000000,
			ExpirationServerTime: 1700086400,
		},
	}
}

func TestKeyVaultIdentity(t *testing.T) {
	vault, _ := newTestVault(t, filepath.Join(t.TempDir(), "KeyVaultDpapi.dat"))
	assert.Equal(t, "dpapi", vault.ID())
	assert.Equal(t, "Windows DPAPI Key Vault", vault.Label())
	assert.Equal(t, 100, vault.SecurityLevel())
}

func TestKeyVaultLoadMissingStore(t *testing.T) {
	vault, _ := newTestVault(t, filepath.Join(t.TempDir(), "KeyVaultDpapi.dat"))

	_, err := vault.LoadAllKeyRecords()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrResourceNotFound))
}

func TestKeyVaultSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "KeyVaultDpapi.dat")
	vault, _ := newTestVault(t, path)

	require.NoError(t, vault.SaveAllKeyRecords(testRecords()))

	// A fresh instance has no tracker state and must read from disk.
	reloaded, _ := newTestVault(t, path)
	records, err := reloaded.LoadAllKeyRecords()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []byte("first-key-material"), records["key-1"].Key)
	assert.Equal(t, []string{"signing"}, records["key-1"].Attributes["purpose"])
	assert.Equal(t, int64(1700086400), records["key-2"].ExpirationServerTime)
}

func TestKeyVaultLoadNotNeeded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "KeyVaultDpapi.dat")
	vault, cipher := newTestVault(t, path)

	require.NoError(t, vault.SaveAllKeyRecords(testRecords()))

	// The save recorded the file metadata; an immediate load is redundant.
	_, err := vault.LoadAllKeyRecords()
	assert.True(t, errors.Is(err, ErrLoadNotNeeded))
	assert.Equal(t, 0, cipher.decrypts, "short-circuit must not decrypt")

	// The in-memory set is still intact.
	record, ok := vault.GetKey("key-1")
	require.True(t, ok)
	assert.Equal(t, "key-1", record.ID)
}

func TestKeyVaultDetectsExternalChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "KeyVaultDpapi.dat")
	vault, _ := newTestVault(t, path)
	require.NoError(t, vault.SaveAllKeyRecords(testRecords()))

	// Another process rewrites the store with a different record set.
	other, _ := newTestVault(t, path)
	require.NoError(t, other.SaveAllKeyRecords(map[string]*KeyRecord{
		"key-9": {ID: "key-9", Key: []byte("rotated"), IssuedServerTime: 1700000500},
	}))

	records, err := vault.LoadAllKeyRecords()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Contains(t, records, "key-9")
}

func TestKeyVaultPathSwitchResetsTracker(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.dat")
	second := filepath.Join(dir, "b.dat")

	vault, _ := newTestVault(t, first)
	require.NoError(t, vault.SaveAllKeyRecords(testRecords()))

	other, _ := newTestVault(t, second)
	require.NoError(t, other.SaveAllKeyRecords(map[string]*KeyRecord{
		"only": {ID: "only", Key: []byte("x"), IssuedServerTime: 1},
	}))

	vault.SetFilePath(second)
	records, err := vault.LoadAllKeyRecords()
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestKeyVaultClean(t *testing.T) {
	path := filepath.Join(t.TempDir(), "KeyVaultDpapi.dat")
	vault, _ := newTestVault(t, path)
	require.NoError(t, vault.SaveAllKeyRecords(testRecords()))

	vault.CleanVaultStore()

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "backing file must be gone")
	assert.Empty(t, vault.Records())

	// Cleaning an absent store is fine.
	vault.CleanVaultStore()

	_, err = vault.LoadAllKeyRecords()
	assert.True(t, errors.Is(err, ErrResourceNotFound))
}

func TestKeyVaultSetGetRemove(t *testing.T) {
	vault, _ := newTestVault(t, filepath.Join(t.TempDir(), "KeyVaultDpapi.dat"))

	require.NoError(t, vault.SetKey(&KeyRecord{ID: "key-1", Key: []byte("material")}))

	record, ok := vault.GetKey("key-1")
	require.True(t, ok)
	assert.NotZero(t, record.IssuedServerTime, "issue time defaults to now")

	assert.True(t, vault.RemoveKey("key-1"))
	assert.False(t, vault.RemoveKey("key-1"))
	_, ok = vault.GetKey("key-1")
	assert.False(t, ok)
}

func TestKeyVaultSetKeyValidation(t *testing.T) {
	vault, _ := newTestVault(t, filepath.Join(t.TempDir(), "KeyVaultDpapi.dat"))

	assert.Error(t, vault.SetKey(nil))
	assert.Error(t, vault.SetKey(&KeyRecord{Key: []byte("material")}))
	assert.Error(t, vault.SetKey(&KeyRecord{ID: "key-1"}))
}

func TestKeyVaultExpireKeys(t *testing.T) {
	vault, _ := newTestVault(t, filepath.Join(t.TempDir(), "KeyVaultDpapi.dat"))

	savedNow := nowUnix
	nowUnix = func() int64 { return 1700090000 }
	defer func() { nowUnix = savedNow }()

	records := testRecords() // key-2 expires at 1700086400
	require.NoError(t, vault.SaveAllKeyRecords(records))

	removed := vault.ExpireKeys()
	assert.Equal(t, 1, removed)
	_, ok := vault.GetKey("key-2")
	assert.False(t, ok)
	_, ok = vault.GetKey("key-1")
	assert.True(t, ok)
}

func TestVaultFileRejectsLegacyLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "KeyVaultDpapi.dat")
	require.NoError(t, os.WriteFile(path, []byte{0x01, 0x00, 0x00, 0x00}, 0600))

	vault, _ := newTestVault(t, path)
	_, err := vault.LoadAllKeyRecords()
	assert.True(t, errors.Is(err, ErrMissingHeader))
}

func TestVaultFileRejectsForeignFileType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "KeyVaultDpapi.dat")
	vault, cipher := newTestVault(t, path)

	// A profile bundle header on the vault path is a wiring mistake.
	ciphertext, err := cipher.Encrypt([]byte(`{"keyRecords":{}}`))
	require.NoError(t, err)
	raw := append(createHeader(FileTypeProfiles, Version10), []byte(HeaderDelimiter)...)
	raw = append(raw, ciphertext...)
	require.NoError(t, os.WriteFile(path, raw, 0600))

	_, err = vault.LoadAllKeyRecords()
	assert.True(t, errors.Is(err, ErrInvalidFormat))
}
