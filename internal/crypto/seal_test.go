package crypto

import (
	"bytes"
	"crypto/ed25519"
	"os"
	"path/filepath"
	"testing"
)

func testSeed() []byte {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i + 1)
	}
	return seed
}

func TestSignAndVerifyDigest(t *testing.T) {
	priv, pub, err := KeyPairFromSeed(testSeed())
	if err != nil {
		t.Fatalf("keypair: %v", err)
	}

	digest := DigestBytes([]byte("sealed payload"))
	sig, err := SignDigest(priv, digest)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	ok, err := VerifyDigest(pub, digest, sig)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatalf("expected valid signature")
	}

	tampered := DigestBytes([]byte("tampered payload"))
	ok, err = VerifyDigest(pub, tampered, sig)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatalf("expected invalid signature for tampered digest")
	}
}

func TestSignDigestRejectsBadLength(t *testing.T) {
	priv, _, _ := KeyPairFromSeed(testSeed())
	if _, err := SignDigest(priv, []byte("short")); err != ErrInvalidDigestLen {
		t.Fatalf("expected ErrInvalidDigestLen, got %v", err)
	}
}

func TestLoadPrivateKeyHexSeed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seal.key")

	if err := os.WriteFile(path, []byte("hex:0101010101010101010101010101010101010101010101010101010101010101"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	priv, pub, err := LoadPrivateKey(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(priv) != ed25519.PrivateKeySize || len(pub) != ed25519.PublicKeySize {
		t.Fatalf("unexpected key sizes: %d %d", len(priv), len(pub))
	}

	digest := DigestBytes([]byte("x"))
	sig, err := SignDigest(priv, digest)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if ok, _ := VerifyDigest(pub, digest, sig); !ok {
		t.Fatalf("roundtrip verify failed")
	}
}

func TestLoadPrivateKeyRawBytes(t *testing.T) {
	priv, _, _ := KeyPairFromSeed(testSeed())

	dir := t.TempDir()
	path := filepath.Join(dir, "seal.bin")
	if err := os.WriteFile(path, priv, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	loaded, _, err := LoadPrivateKey(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !bytes.Equal(loaded, priv) {
		t.Fatalf("loaded key differs from written key")
	}
}
