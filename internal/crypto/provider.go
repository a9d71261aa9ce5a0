// Package crypto implements envelope encryption for field-level data
// protection: per-purpose 256-bit data keys wrapped under a master key,
// AES-256-GCM for payloads, and a keyed deterministic hash for
// equality lookup on encrypted-at-rest values.
package crypto

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"

	"aegis/internal/crypto/keystore"
	"aegis/pkg/platform/audit"
	"aegis/pkg/platform/sentinel"
	"aegis/pkg/requestcontext"
)

// AlgorithmAESGCM tags key records with the cipher they serve.
const AlgorithmAESGCM = "AES-256-GCM"

const dataKeySize = 32

// ErrDecryption is the single failure surfaced for any decryption problem:
// unknown version, unknown key, or tag verification. Callers translate it to
// a masked placeholder rather than aborting the whole response.
var ErrDecryption = errors.New("decryption failed")

// Provider manages the master key, data-key lifecycle, and AEAD operations.
type Provider struct {
	master    []byte
	keys      keystore.Store
	wrapper   keyWrapper
	logger    *slog.Logger
	publisher *audit.Publisher
}

// Option configures optional provider collaborators.
type Option func(*Provider)

// WithAudit enables key-lifecycle audit events (creation, rotation).
func WithAudit(publisher *audit.Publisher) Option {
	return func(p *Provider) { p.publisher = publisher }
}

// NewProvider builds a Provider. When no master key is configured a random
// throwaway key is generated: ciphertexts then die with the process, so this
// mode is only viable for development and tests.
func NewProvider(master []byte, keys keystore.Store, logger *slog.Logger, opts ...Option) (*Provider, error) {
	if len(master) == 0 {
		master = make([]byte, dataKeySize)
		if _, err := rand.Read(master); err != nil {
			return nil, fmt.Errorf("generate placeholder master key: %w", err)
		}
		logger.Warn("NO MASTER KEY CONFIGURED - generated a random placeholder; " +
			"encrypted data will be unrecoverable after restart. " +
			"Set AEGIS_MASTER_KEY before storing anything that matters.")
	}
	p := &Provider{
		master:  master,
		keys:    keys,
		wrapper: newXORWrapper(master),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Encrypt seals plaintext under the alias's active data key and packs the
// result into the versioned wire format. Empty input is a no-op returning an
// empty blob.
func (p *Provider) Encrypt(ctx context.Context, plaintext []byte, alias string) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, nil
	}

	key, material, err := p.activeKey(ctx, alias)
	if err != nil {
		return nil, err
	}

	gcm, err := newGCM(material)
	if err != nil {
		return nil, err
	}

	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("generate iv: %w", err)
	}

	sealed := gcm.Seal(nil, iv, plaintext, nil)
	return packBlob(key.ID, iv, sealed), nil
}

// Decrypt reverses Encrypt. Every failure mode collapses into ErrDecryption.
func (p *Provider) Decrypt(ctx context.Context, blob []byte) ([]byte, error) {
	if len(blob) == 0 {
		return nil, nil
	}

	keyID, iv, sealed, err := parseBlob(blob)
	if err != nil {
		return nil, err
	}

	key, err := p.keys.GetByID(ctx, keyID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown key %s", ErrDecryption, keyID)
		}
		return nil, fmt.Errorf("%w: key lookup: %v", ErrDecryption, err)
	}

	gcm, err := newGCM(p.wrapper.Unwrap(key.WrappedKey))
	if err != nil {
		// Corrupted key material yields an unusable cipher.
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}

	plaintext, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		// Tag verification failure: tampered ciphertext or wrong key.
		return nil, fmt.Errorf("%w: authentication failed", ErrDecryption)
	}
	return plaintext, nil
}

// DeterministicHash computes a keyed hash over the normalized value, keyed
// by an HKDF derivation of the master key with the alias as salt. Equal
// inputs (up to normalization) hash equally, enabling lookup without
// decryption. This is an indexing primitive, not a secrecy boundary.
func (p *Provider) DeterministicHash(value, alias string) (string, error) {
	hmacKey := make([]byte, dataKeySize)
	derive := hkdf.New(sha256.New, p.master, []byte(alias), []byte("aegis/deterministic-hash"))
	if _, err := io.ReadFull(derive, hmacKey); err != nil {
		return "", fmt.Errorf("derive hash key: %w", err)
	}

	mac := hmac.New(sha256.New, hmacKey)
	mac.Write([]byte(normalize(value)))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// EnsureKey guarantees an active data key exists for the alias, creating one
// when absent. Safe under concurrent callers: the store's atomic upsert
// keeps the one-active-key-per-alias invariant.
func (p *Provider) EnsureKey(ctx context.Context, alias string) (keystore.Key, error) {
	candidate, err := p.newCandidate(ctx, alias)
	if err != nil {
		return keystore.Key{}, err
	}
	key, created, err := p.keys.GetOrCreateActive(ctx, candidate)
	if err != nil {
		return keystore.Key{}, fmt.Errorf("ensure key for alias %q: %w", alias, err)
	}
	if created {
		p.logger.InfoContext(ctx, "created data key", "alias", alias, "key_id", key.ID)
		p.emit(ctx, audit.EventKeyCreated, key)
	}
	return key, nil
}

// RotateKey retires the alias's active key and installs a fresh one. Old
// ciphertexts remain decryptable through their embedded key id.
func (p *Provider) RotateKey(ctx context.Context, alias string) (keystore.Key, error) {
	replacement, err := p.newCandidate(ctx, alias)
	if err != nil {
		return keystore.Key{}, err
	}
	key, err := p.keys.Rotate(ctx, alias, replacement, requestcontext.Now(ctx))
	if err != nil {
		return keystore.Key{}, fmt.Errorf("rotate key for alias %q: %w", alias, err)
	}
	p.logger.InfoContext(ctx, "rotated data key", "alias", alias, "key_id", key.ID)
	p.emit(ctx, audit.EventKeyRotated, key)
	return key, nil
}

func (p *Provider) emit(ctx context.Context, action audit.AuditEvent, key keystore.Key) {
	if p.publisher == nil {
		return
	}
	event := audit.Event{
		ActorID:    requestcontext.SubjectID(ctx),
		Action:     string(action),
		Resource:   "encryption_key",
		ResourceID: key.ID.String(),
		Scope:      key.Alias,
		RequestID:  requestcontext.RequestID(ctx),
	}
	if err := p.publisher.Emit(ctx, event); err != nil {
		p.logger.ErrorContext(ctx, "failed to emit key lifecycle audit event",
			"action", event.Action,
			"error", err,
		)
	}
}

func (p *Provider) activeKey(ctx context.Context, alias string) (keystore.Key, []byte, error) {
	key, err := p.EnsureKey(ctx, alias)
	if err != nil {
		return keystore.Key{}, nil, err
	}
	return key, p.wrapper.Unwrap(key.WrappedKey), nil
}

func (p *Provider) newCandidate(ctx context.Context, alias string) (keystore.Key, error) {
	material := make([]byte, dataKeySize)
	if _, err := rand.Read(material); err != nil {
		return keystore.Key{}, fmt.Errorf("generate data key: %w", err)
	}
	return keystore.Key{
		ID:         uuid.New(),
		Alias:      alias,
		WrappedKey: p.wrapper.Wrap(material),
		Algorithm:  AlgorithmAESGCM,
		Active:     true,
		CreatedAt:  requestcontext.Now(ctx),
	}, nil
}

func newGCM(material []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(material)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	return gcm, nil
}

// normalize canonicalizes a value for deterministic hashing: trim, strip
// spaces and dashes, lowercase. "123-45-6789" and "123456789" hash equally.
func normalize(value string) string {
	value = strings.TrimSpace(value)
	value = strings.ReplaceAll(value, " ", "")
	value = strings.ReplaceAll(value, "-", "")
	return strings.ToLower(value)
}
