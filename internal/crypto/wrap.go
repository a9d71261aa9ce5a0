package crypto

import "crypto/sha256"

// keyWrapper protects data-key material at rest. The interface exists so the
// placeholder below can be swapped for a real KMS integration without
// touching the provider.
type keyWrapper interface {
	Wrap(dataKey []byte) []byte
	Unwrap(wrapped []byte) []byte
}

// xorWrapper XORs the data key against SHA-256(master key).
//
// WARNING: this is NOT key wrapping in any cryptographic sense - it is
// obfuscation only. It exists so the storage schema and key lifecycle are in
// place before a KMS integration lands. Do not ship this to production.
type xorWrapper struct {
	pad [sha256.Size]byte
}

func newXORWrapper(master []byte) *xorWrapper {
	return &xorWrapper{pad: sha256.Sum256(master)}
}

func (w *xorWrapper) Wrap(dataKey []byte) []byte {
	out := make([]byte, len(dataKey))
	for i := range dataKey {
		out[i] = dataKey[i] ^ w.pad[i%len(w.pad)]
	}
	return out
}

// Unwrap is its own inverse under XOR.
func (w *xorWrapper) Unwrap(wrapped []byte) []byte {
	return w.Wrap(wrapped)
}
