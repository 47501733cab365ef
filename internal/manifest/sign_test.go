package manifest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/daveleo/exview-aio-protocol-tool/internal/crypto"
)

func signer(t *testing.T) (keyPEM, certPEM []byte) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	tpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "certctl test signer"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tpl, tpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	return keyPEM, certPEM
}

func TestSignAndVerifyFile(t *testing.T) {
	dir := t.TempDir()
	artifact := filepath.Join(dir, "cert-r1.json")
	writeFile(t, artifact, `{}`)
	m, err := Build("r1", dir, []string{artifact})
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "cert-r1.manifest.json")
	if err := Save(m, path); err != nil {
		t.Fatal(err)
	}
	keyPEM, certPEM := signer(t)
	sigPath, err := SignFile(path, keyPEM)
	if err != nil {
		t.Fatalf("SignFile: %v", err)
	}
	if sigPath != path+SignatureExt {
		t.Fatalf("sig path = %s", sigPath)
	}
	if err := VerifyFile(path, sigPath, certPEM); err != nil {
		t.Fatalf("VerifyFile: %v", err)
	}

	if err := os.WriteFile(path, []byte(`{"runId":"forged"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := VerifyFile(path, sigPath, certPEM); !errors.Is(err, crypto.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}
