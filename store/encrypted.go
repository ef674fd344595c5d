package store

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"io"

	"github.com/xiaoyuanxun/anda-sub000/errs"
	"github.com/xiaoyuanxun/anda-sub000/keys"
	"github.com/xiaoyuanxun/anda-sub000/types"
)

// Encrypted wraps any Store with an AES-256-GCM envelope, deriving a
// per-object key via HKDF over the stored path and a service-wide key
// service, per spec.md §4.2.
type Encrypted struct {
	inner Store
	keys  keys.Service
	scope keys.Path // base derivation path shared by every object
}

func NewEncrypted(inner Store, k keys.Service, scope keys.Path) *Encrypted {
	return &Encrypted{inner: inner, keys: k, scope: scope}
}

var _ Store = (*Encrypted)(nil)

func (e *Encrypted) objectKeyPath(namespace, path types.Path) keys.Path {
	return e.scope.Append([]byte(EffectiveKey(namespace, path)))
}

func (e *Encrypted) Get(ctx context.Context, namespace, path types.Path) ([]byte, Meta, error) {
	ciphertext, meta, err := e.inner.Get(ctx, namespace, path)
	if err != nil {
		return nil, Meta{}, err
	}
	plaintext, err := e.decrypt(namespace, path, ciphertext)
	if err != nil {
		return nil, Meta{}, err
	}
	return plaintext, meta, nil
}

func (e *Encrypted) List(ctx context.Context, namespace types.Path, prefix types.Path, offset string) ([]Meta, error) {
	return e.inner.List(ctx, namespace, prefix, offset)
}

func (e *Encrypted) Put(ctx context.Context, namespace, path types.Path, mode PutMode, data []byte) (PutResult, error) {
	if err := checkSize("store.Encrypted.Put", data); err != nil {
		return PutResult{}, err
	}
	ciphertext, err := e.encrypt(namespace, path, data)
	if err != nil {
		return PutResult{}, err
	}
	return e.inner.Put(ctx, namespace, path, mode, ciphertext)
}

func (e *Encrypted) RenameIfNotExists(ctx context.Context, namespace types.Path, from, to types.Path) error {
	return e.inner.RenameIfNotExists(ctx, namespace, from, to)
}

func (e *Encrypted) Delete(ctx context.Context, namespace, path types.Path) error {
	return e.inner.Delete(ctx, namespace, path)
}

func (e *Encrypted) encrypt(namespace, path types.Path, plaintext []byte) ([]byte, error) {
	key, err := e.keys.A256GCMKey(e.objectKeyPath(namespace, path))
	if err != nil {
		return nil, errs.Internal("store.Encrypted", "key derivation failed", err)
	}
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, errs.Internal("store.Encrypted", "aes cipher init failed", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errs.Internal("store.Encrypted", "gcm init failed", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, errs.Internal("store.Encrypted", "nonce generation failed", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (e *Encrypted) decrypt(namespace, path types.Path, ciphertext []byte) ([]byte, error) {
	key, err := e.keys.A256GCMKey(e.objectKeyPath(namespace, path))
	if err != nil {
		return nil, errs.Internal("store.Encrypted", "key derivation failed", err)
	}
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, errs.Internal("store.Encrypted", "aes cipher init failed", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errs.Internal("store.Encrypted", "gcm init failed", err)
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errs.Internal("store.Encrypted", "ciphertext too short", nil)
	}
	nonce, body := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, body, nil)
	if err != nil {
		return nil, errs.Internal("store.Encrypted", "gcm decrypt failed", err)
	}
	return plaintext, nil
}
