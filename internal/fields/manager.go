// Package fields orchestrates field-level encryption for JSON documents. A
// registered field is replaced on write by its ciphertext (and optionally a
// deterministic hash for equality lookup), and on read is either decrypted
// back to plaintext or masked, depending on what the caller is permitted to
// see.
package fields

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"aegis/internal/crypto"
	"aegis/internal/crypto/keystore"
	"aegis/internal/fields/store"
	dErrors "aegis/pkg/domain-errors"
	"aegis/pkg/platform/audit"
	"aegis/pkg/platform/privacy"
	"aegis/pkg/requestcontext"
)

const (
	encryptedSuffix = "_encrypted"
	hmacSuffix      = "_hmac"

	// decryptErrorMarker replaces a permitted field whose ciphertext could
	// not be opened. One broken field never aborts its siblings.
	decryptErrorMarker = "[decryption error]"

	fullMask = "****"
)

// Cipher is the encryption surface the manager needs. *crypto.Provider
// satisfies it.
type Cipher interface {
	Encrypt(ctx context.Context, plaintext []byte, alias string) ([]byte, error)
	Decrypt(ctx context.Context, blob []byte) ([]byte, error)
	DeterministicHash(value, alias string) (string, error)
	EnsureKey(ctx context.Context, alias string) (keystore.Key, error)
}

// Manager applies registered field-encryption metadata to documents.
type Manager struct {
	store     store.Store
	cipher    Cipher
	publisher *audit.Publisher
	logger    *slog.Logger
}

func NewManager(store store.Store, cipher Cipher, publisher *audit.Publisher, logger *slog.Logger) *Manager {
	return &Manager{store: store, cipher: cipher, publisher: publisher, logger: logger}
}

// RegisterEncryptedField records that a field of a resource is encrypted
// under the given key alias, and ensures the backing key exists.
func (m *Manager) RegisterEncryptedField(ctx context.Context, resource, field, alias string, deterministic bool) error {
	resource = strings.TrimSpace(resource)
	field = strings.TrimSpace(field)
	alias = strings.TrimSpace(alias)
	if resource == "" || field == "" || alias == "" {
		return dErrors.New(dErrors.CodeValidation, "resource, field and key alias are required")
	}

	if _, err := m.cipher.EnsureKey(ctx, alias); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to ensure encryption key")
	}
	meta := store.Meta{
		Resource:      resource,
		Field:         field,
		KeyAlias:      alias,
		Deterministic: deterministic,
		CreatedAt:     requestcontext.Now(ctx),
	}
	if err := m.store.Upsert(ctx, meta); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to register encrypted field")
	}
	return nil
}

// EncryptFields returns a copy of the document with every registered field
// that is present and non-nil replaced by "<field>_encrypted" (base64 blob)
// and, for deterministic fields, "<field>_hmac". The plaintext field is
// removed. Unregistered fields pass through untouched.
func (m *Manager) EncryptFields(ctx context.Context, doc map[string]any, resource string) (map[string]any, error) {
	metas, err := m.store.ListByResource(ctx, resource)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load field metadata")
	}

	out := cloneDocument(doc)
	for _, meta := range metas {
		value, ok := out[meta.Field]
		if !ok || value == nil {
			continue
		}
		plaintext := valueString(value)

		blob, err := m.cipher.Encrypt(ctx, []byte(plaintext), meta.KeyAlias)
		if err != nil {
			return nil, dErrors.Wrapf(err, dErrors.CodeInternal, "failed to encrypt field %q", meta.Field)
		}
		out[meta.Field+encryptedSuffix] = base64.StdEncoding.EncodeToString(blob)
		if meta.Deterministic {
			hash, err := m.cipher.DeterministicHash(plaintext, meta.KeyAlias)
			if err != nil {
				return nil, dErrors.Wrapf(err, dErrors.CodeInternal, "failed to hash field %q", meta.Field)
			}
			out[meta.Field+hmacSuffix] = hash
		}
		delete(out, meta.Field)

		m.emit(ctx, audit.Event{
			Action:     string(audit.EventSensitiveFieldWrite),
			Resource:   meta.Resource,
			ResourceID: meta.Field,
			AfterHash:  privacy.HashValue(plaintext),
		})
	}
	return out, nil
}

// DecryptFields returns a copy of the document with every registered field
// whose ciphertext is present replaced either by its plaintext (when the
// field is in permittedFields) or by a masked rendering of it. Ciphertext
// and hash companion keys are removed from the output. A single field's
// decryption failure yields a fixed marker (permitted) or the full mask
// (masked) without affecting sibling fields.
func (m *Manager) DecryptFields(ctx context.Context, doc map[string]any, resource string, permittedFields []string) (map[string]any, error) {
	metas, err := m.store.ListByResource(ctx, resource)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load field metadata")
	}

	permitted := make(map[string]struct{}, len(permittedFields))
	for _, f := range permittedFields {
		permitted[f] = struct{}{}
	}

	out := cloneDocument(doc)
	for _, meta := range metas {
		raw, ok := out[meta.Field+encryptedSuffix]
		if !ok {
			continue
		}
		delete(out, meta.Field+encryptedSuffix)
		delete(out, meta.Field+hmacSuffix)

		plaintext, err := m.openField(ctx, raw)
		_, isPermitted := permitted[meta.Field]

		switch {
		case err != nil && isPermitted:
			out[meta.Field] = decryptErrorMarker
			m.reportFailure(ctx, meta, err)
		case err != nil:
			out[meta.Field] = fullMask
			m.reportFailure(ctx, meta, err)
		case isPermitted:
			out[meta.Field] = plaintext
			m.emit(ctx, audit.Event{
				Action:     string(audit.EventFieldDecrypted),
				Resource:   meta.Resource,
				ResourceID: meta.Field,
				Decision:   "plaintext",
				AfterHash:  privacy.HashValue(plaintext),
			})
		default:
			out[meta.Field] = privacy.MaskValue(plaintext)
			m.emit(ctx, audit.Event{
				Action:     string(audit.EventFieldDecrypted),
				Resource:   meta.Resource,
				ResourceID: meta.Field,
				Decision:   "masked",
				AfterHash:  privacy.HashValue(plaintext),
			})
		}
	}
	return out, nil
}

// openField base64-decodes and decrypts one ciphertext value. Malformed
// encoding is treated the same as any other decryption failure.
func (m *Manager) openField(ctx context.Context, raw any) (string, error) {
	encoded, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: ciphertext is not a string", crypto.ErrDecryption)
	}
	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: malformed base64 ciphertext", crypto.ErrDecryption)
	}
	plaintext, err := m.cipher.Decrypt(ctx, blob)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func (m *Manager) reportFailure(ctx context.Context, meta store.Meta, err error) {
	if !errors.Is(err, crypto.ErrDecryption) {
		m.logger.ErrorContext(ctx, "unexpected decryption error",
			"resource", meta.Resource,
			"field", meta.Field,
			"error", err,
		)
	}
	m.emit(ctx, audit.Event{
		Action:     string(audit.EventDecryptionFailed),
		Resource:   meta.Resource,
		ResourceID: meta.Field,
		Decision:   "masked",
		Reason:     err.Error(),
	})
}

func (m *Manager) emit(ctx context.Context, event audit.Event) {
	if m.publisher == nil {
		return
	}
	event.ActorID = requestcontext.SubjectID(ctx)
	event.RequestID = requestcontext.RequestID(ctx)
	if err := m.publisher.Emit(ctx, event); err != nil {
		m.logger.ErrorContext(ctx, "failed to emit field audit event",
			"action", event.Action,
			"error", err,
		)
	}
}

func cloneDocument(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

// valueString renders a document value for encryption. JSON documents carry
// strings for the fields registered here; anything else is rendered with
// default formatting.
func valueString(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}
