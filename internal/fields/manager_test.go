package fields

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aegis/internal/crypto"
	"aegis/internal/crypto/keystore"
	"aegis/internal/fields/store"
	"aegis/pkg/platform/audit"
	auditmemory "aegis/pkg/platform/audit/store/memory"
)

func newTestManager(t *testing.T) (*Manager, *auditmemory.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	provider, err := crypto.NewProvider(bytes.Repeat([]byte{7}, 32), keystore.NewMemoryStore(), logger)
	require.NoError(t, err)

	sink := auditmemory.New()
	manager := NewManager(store.NewMemory(), provider, audit.NewPublisher(sink), logger)

	ctx := context.Background()
	require.NoError(t, manager.RegisterEncryptedField(ctx, "client_profile", "tax_id", "client-pii", true))
	require.NoError(t, manager.RegisterEncryptedField(ctx, "client_profile", "bank_account", "client-financial", false))
	return manager, sink
}

func TestEncryptFields(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	doc := map[string]any{
		"name":         "Acme Holdings",
		"tax_id":       "123-45-6789",
		"bank_account": "NL91ABNA0417164300",
	}
	out, err := manager.EncryptFields(ctx, doc, "client_profile")
	require.NoError(t, err)

	assert.Equal(t, "Acme Holdings", out["name"], "unregistered fields pass through")
	assert.NotContains(t, out, "tax_id")
	assert.NotContains(t, out, "bank_account")
	assert.Contains(t, out, "tax_id_encrypted")
	assert.Contains(t, out, "bank_account_encrypted")
	assert.Contains(t, out, "tax_id_hmac", "deterministic field carries a hash")
	assert.NotContains(t, out, "bank_account_hmac")

	// Ciphertext is valid base64 of a versioned blob.
	blob, err := base64.StdEncoding.DecodeString(out["tax_id_encrypted"].(string))
	require.NoError(t, err)
	assert.Equal(t, byte(1), blob[0])

	// Input document untouched.
	assert.Equal(t, "123-45-6789", doc["tax_id"])
}

func TestEncryptFieldsSkipsAbsentAndNil(t *testing.T) {
	manager, _ := newTestManager(t)

	out, err := manager.EncryptFields(context.Background(), map[string]any{
		"name":   "Acme",
		"tax_id": nil,
	}, "client_profile")
	require.NoError(t, err)

	assert.NotContains(t, out, "tax_id_encrypted")
	assert.Contains(t, out, "tax_id") // nil value left as-is
}

func TestEncryptFieldsDeterministicHashStable(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	first, err := manager.EncryptFields(ctx, map[string]any{"tax_id": "123-45-6789"}, "client_profile")
	require.NoError(t, err)
	second, err := manager.EncryptFields(ctx, map[string]any{"tax_id": "123456789"}, "client_profile")
	require.NoError(t, err)

	assert.Equal(t, first["tax_id_hmac"], second["tax_id_hmac"],
		"equal values up to normalization hash equally")
	assert.NotEqual(t, first["tax_id_encrypted"], second["tax_id_encrypted"],
		"ciphertexts stay randomized")
}

func TestDecryptFieldsPermittedAndMasked(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	encrypted, err := manager.EncryptFields(ctx, map[string]any{
		"name":         "Acme Holdings",
		"tax_id":       "123-45-6789",
		"bank_account": "NL91ABNA0417164300",
	}, "client_profile")
	require.NoError(t, err)

	out, err := manager.DecryptFields(ctx, encrypted, "client_profile", []string{"tax_id"})
	require.NoError(t, err)

	assert.Equal(t, "123-45-6789", out["tax_id"], "permitted field returns plaintext")
	assert.Equal(t, "N****************0", out["bank_account"], "non-permitted field is masked")
	assert.Equal(t, "Acme Holdings", out["name"])
	assert.NotContains(t, out, "tax_id_encrypted")
	assert.NotContains(t, out, "tax_id_hmac")
	assert.NotContains(t, out, "bank_account_encrypted")
}

func TestDecryptFieldsMaskedReadIsAudited(t *testing.T) {
	manager, sink := newTestManager(t)
	ctx := context.Background()

	encrypted, err := manager.EncryptFields(ctx, map[string]any{"bank_account": "NL91ABNA0417164300"}, "client_profile")
	require.NoError(t, err)

	out, err := manager.DecryptFields(ctx, encrypted, "client_profile", nil)
	require.NoError(t, err)
	assert.Equal(t, "N****************0", out["bank_account"])

	var masked []audit.Event
	for _, event := range sink.All() {
		if event.Action == string(audit.EventFieldDecrypted) && event.Decision == "masked" {
			masked = append(masked, event)
		}
	}
	require.Len(t, masked, 1, "a masked read is still a decryption")
	assert.Equal(t, "bank_account", masked[0].ResourceID)
	assert.Len(t, masked[0].AfterHash, 64)
	assert.NotContains(t, masked[0].AfterHash, "NL91ABNA0417164300")
}

func TestDecryptFieldsFailureIsPerField(t *testing.T) {
	manager, sink := newTestManager(t)
	ctx := context.Background()

	encrypted, err := manager.EncryptFields(ctx, map[string]any{
		"tax_id":       "123-45-6789",
		"bank_account": "NL91ABNA0417164300",
	}, "client_profile")
	require.NoError(t, err)

	// Corrupt one ciphertext; the sibling must still decrypt.
	encrypted["bank_account_encrypted"] = base64.StdEncoding.EncodeToString([]byte("garbage"))

	out, err := manager.DecryptFields(ctx, encrypted, "client_profile", []string{"tax_id", "bank_account"})
	require.NoError(t, err)

	assert.Equal(t, "123-45-6789", out["tax_id"])
	assert.Equal(t, "[decryption error]", out["bank_account"])

	var failures int
	for _, event := range sink.All() {
		if event.Action == string(audit.EventDecryptionFailed) {
			failures++
		}
	}
	assert.Equal(t, 1, failures)
}

func TestDecryptFieldsMaskedFailureFullyMasks(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	encrypted, err := manager.EncryptFields(ctx, map[string]any{"bank_account": "NL91ABNA0417164300"}, "client_profile")
	require.NoError(t, err)
	encrypted["bank_account_encrypted"] = "not even base64!!"

	out, err := manager.DecryptFields(ctx, encrypted, "client_profile", nil)
	require.NoError(t, err)
	assert.Equal(t, "****", out["bank_account"])
}

func TestDecryptFieldsAuditsHashesOnly(t *testing.T) {
	manager, sink := newTestManager(t)
	ctx := context.Background()

	encrypted, err := manager.EncryptFields(ctx, map[string]any{"tax_id": "123-45-6789"}, "client_profile")
	require.NoError(t, err)
	_, err = manager.DecryptFields(ctx, encrypted, "client_profile", []string{"tax_id"})
	require.NoError(t, err)

	for _, event := range sink.All() {
		assert.NotContains(t, event.AfterHash, "123-45-6789")
		assert.NotContains(t, event.Reason, "123-45-6789")
		if event.Action == string(audit.EventFieldDecrypted) {
			assert.Len(t, event.AfterHash, 64, "audit carries a digest, never plaintext")
		}
	}
}

func TestRegisterEncryptedFieldValidation(t *testing.T) {
	manager, _ := newTestManager(t)
	err := manager.RegisterEncryptedField(context.Background(), "client_profile", "", "client-pii", false)
	assert.Error(t, err)
}
