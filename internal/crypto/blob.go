package crypto

import (
	"fmt"

	"github.com/google/uuid"
)

// Encrypted blob wire format:
//
//	version(1 byte) || key_id(16 bytes) || iv(12 bytes) || ciphertext(variable) || tag(16 bytes)
//
// The version byte enables forward-compatible algorithm changes; an unknown
// version is a hard decryption failure. AES-GCM emits ciphertext||tag as one
// sealed buffer, so the layout after the IV is exactly gcm.Seal's output.
const (
	blobVersion   = 1
	keyIDSize     = 16
	ivSize        = 12
	tagSize       = 16
	blobHeaderLen = 1 + keyIDSize + ivSize
	blobMinLen    = blobHeaderLen + tagSize
)

// packBlob assembles the wire format.
func packBlob(keyID uuid.UUID, iv []byte, sealed []byte) []byte {
	blob := make([]byte, 0, blobHeaderLen+len(sealed))
	blob = append(blob, blobVersion)
	blob = append(blob, keyID[:]...)
	blob = append(blob, iv...)
	blob = append(blob, sealed...)
	return blob
}

// parseBlob validates the header and splits the components.
func parseBlob(blob []byte) (keyID uuid.UUID, iv []byte, sealed []byte, err error) {
	if len(blob) < blobMinLen {
		return uuid.Nil, nil, nil, fmt.Errorf("%w: blob too short (%d bytes)", ErrDecryption, len(blob))
	}
	if blob[0] != blobVersion {
		return uuid.Nil, nil, nil, fmt.Errorf("%w: unsupported blob version %d", ErrDecryption, blob[0])
	}
	keyID, err = uuid.FromBytes(blob[1 : 1+keyIDSize])
	if err != nil {
		return uuid.Nil, nil, nil, fmt.Errorf("%w: malformed key id", ErrDecryption)
	}
	iv = blob[1+keyIDSize : blobHeaderLen]
	sealed = blob[blobHeaderLen:]
	return keyID, iv, sealed, nil
}
