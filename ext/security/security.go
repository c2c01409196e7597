// Package security is an example external collaborator attaching at the
// Observer hook (spec.md §9, C9), standing in for the TLS/encryption layer
// spec.md's Non-goals explicitly push "outside the core": "TLS/encryption
// (handled by a wrapping layer, not this spec)". It authenticates and
// decrypts frames carrying an "iv" header with AES-256-GCM before handing
// them to the next observer, and vetoes anything that fails authentication.
//
// Adapted from the teacher's optimize/crypto.go AES-256-GCM helpers.
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"sync"

	"github.com/nickolajgrishuk/vstp/core"
	"github.com/nickolajgrishuk/vstp/observer"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// IVSize is the GCM nonce length in bytes.
	IVSize = 12

	// HeaderIV carries the per-frame GCM nonce for an encrypted payload.
	HeaderIV = "iv"
)

// KeyStore holds the shared encryption key used by Encrypt/Decrypt and the
// Observer. It is safe for concurrent use.
type KeyStore struct {
	mu  sync.RWMutex
	key []byte
}

// NewKeyStore constructs a KeyStore with no key set.
func NewKeyStore() *KeyStore { return &KeyStore{} }

// SetKey installs the AES-256 key.
func (k *KeyStore) SetKey(key [KeySize]byte) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.key = append([]byte(nil), key[:]...)
}

// Clear zeroes and clears the installed key.
func (k *KeyStore) Clear() {
	k.mu.Lock()
	defer k.mu.Unlock()
	for i := range k.key {
		k.key[i] = 0
	}
	k.key = nil
}

// Enabled reports whether a key is installed.
func (k *KeyStore) Enabled() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.key) == KeySize
}

func (k *KeyStore) gcm() (cipher.AEAD, error) {
	k.mu.RLock()
	key := k.key
	k.mu.RUnlock()
	if len(key) != KeySize {
		return nil, errors.New("security: key not set")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt seals data under a fresh random nonce, returning the ciphertext
// (with GCM tag appended) and the nonce used.
func (k *KeyStore) Encrypt(data []byte) (ciphertext, iv []byte, err error) {
	gcm, err := k.gcm()
	if err != nil {
		return nil, nil, err
	}
	iv = make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, nil, err
	}
	return gcm.Seal(nil, iv, data, nil), iv, nil
}

// Decrypt opens ciphertext sealed under iv, verifying its GCM tag.
func (k *KeyStore) Decrypt(ciphertext, iv []byte) ([]byte, error) {
	if len(iv) != IVSize {
		return nil, errors.New("security: invalid iv size")
	}
	gcm, err := k.gcm()
	if err != nil {
		return nil, err
	}
	return gcm.Open(nil, iv, ciphertext, nil)
}

// Observer decrypts frames carrying an iv header before handing them to
// Next, vetoing anything whose GCM tag fails to authenticate. Frames
// without an iv header pass through unchanged: encryption is opt-in per
// deployment, not a wire requirement.
type Observer struct {
	Keys *KeyStore
	Next observer.Observer
}

// OnFrame implements the observer hook. See Observer's doc comment.
func (o Observer) OnFrame(session observer.SessionID, peer string, f *core.Frame, wireSize int) bool {
	if iv, ok := f.GetHeader(HeaderIV); ok {
		plain, err := o.Keys.Decrypt(f.Payload, iv)
		if err != nil {
			return true // veto: tag verification failed
		}
		f.Payload = plain
	}
	if o.Next == nil {
		return false
	}
	return o.Next.OnFrame(session, peer, f, wireSize)
}

// OnSessionEnd implements the observer hook, delegating to Next if set.
func (o Observer) OnSessionEnd(session observer.SessionID, peer string, err error) {
	if o.Next != nil {
		o.Next.OnSessionEnd(session, peer, err)
	}
}
