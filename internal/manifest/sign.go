package manifest

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/daveleo/exview-aio-protocol-tool/internal/crypto"
)

// SignatureExt is appended to a manifest path for its detached signature.
const SignatureExt = ".jws"

// SignFile signs the bytes of the manifest at path and writes the detached
// JWS next to it. It returns the signature path.
func SignFile(path string, privateKeyPEM []byte) (string, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sig, err := crypto.SignDetached(payload, privateKeyPEM)
	if err != nil {
		return "", fmt.Errorf("sign manifest: %w", err)
	}
	b, err := json.MarshalIndent(sig, "", "  ")
	if err != nil {
		return "", err
	}
	out := path + SignatureExt
	if err := os.WriteFile(out, b, 0o644); err != nil {
		return "", err
	}
	return out, nil
}

// VerifyFile checks the detached signature at sigPath against the manifest
// at path.
func VerifyFile(path, sigPath string, publicPEM []byte) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	b, err := os.ReadFile(sigPath)
	if err != nil {
		return err
	}
	var sig crypto.JWS
	if err := json.Unmarshal(b, &sig); err != nil {
		return fmt.Errorf("decode signature %s: %w", sigPath, err)
	}
	return crypto.VerifyDetached(sig, payload, publicPEM)
}
