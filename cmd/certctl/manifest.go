package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/daveleo/exview-aio-protocol-tool/internal/manifest"
)

func newManifestCmd(a *app) *cobra.Command {
	var (
		out    string
		runID  string
		base   string
		verify string
		key    string
		cert   string
	)
	cmd := &cobra.Command{
		Use:   "manifest [files...]",
		Short: "Write or verify a sha256 manifest of report artifacts",
		Long: `Writes a manifest listing the sha256 and size of each file, optionally
signed with an RSA key as a detached JWS. With --verify the listed files are
hashed again, and the signature is checked when --cert is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if key == "" {
				key = a.cfg.Signing.PrivateKey
			}
			if cert == "" {
				cert = a.cfg.Signing.Certificate
			}
			if verify != "" {
				return verifyManifest(cmd, verify, base, cert)
			}
			if len(args) == 0 {
				return fmt.Errorf("no files given")
			}
			if out == "" {
				return fmt.Errorf("--out is required")
			}
			m, err := manifest.Build(runID, base, args)
			if err != nil {
				return err
			}
			if err := manifest.Save(m, out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "manifest written to %s (%d item(s))\n", out, len(m.Items))
			if key != "" {
				sig, err := signManifest(out, key)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "signature written to %s\n", sig)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "manifest output path")
	cmd.Flags().StringVar(&runID, "run-id", "", "run id recorded in the manifest")
	cmd.Flags().StringVar(&base, "base", "", "directory item paths are relative to")
	cmd.Flags().StringVar(&verify, "verify", "", "verify this manifest instead of writing one")
	cmd.Flags().StringVar(&key, "key", "", "RSA private key (PEM) to sign the manifest")
	cmd.Flags().StringVar(&cert, "cert", "", "certificate or public key (PEM) to verify the signature")
	return cmd
}

func verifyManifest(cmd *cobra.Command, path, base, cert string) error {
	w := cmd.OutOrStdout()
	m, err := manifest.Load(path)
	if err != nil {
		return err
	}
	if base == "" {
		base = filepath.Dir(path)
	}
	changed, err := manifest.Verify(m, base)
	if err != nil {
		return err
	}
	if len(changed) > 0 {
		for _, p := range changed {
			fmt.Fprintf(w, "changed: %s\n", p)
		}
		return fmt.Errorf("%d of %d artifact(s) changed", len(changed), len(m.Items))
	}
	fmt.Fprintf(w, "%d artifact(s) verified\n", len(m.Items))
	if cert == "" {
		return nil
	}
	pub, err := os.ReadFile(cert)
	if err != nil {
		return err
	}
	if err := manifest.VerifyFile(path, path+manifest.SignatureExt, pub); err != nil {
		return fmt.Errorf("manifest signature: %w", err)
	}
	fmt.Fprintln(w, "signature verified")
	return nil
}

// signManifest writes a detached signature next to path using the key at
// keyPath.
func signManifest(path, keyPath string) (string, error) {
	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return "", fmt.Errorf("signing key: %w", err)
	}
	return manifest.SignFile(path, keyPEM)
}

func manifestPath(paths []string) string {
	for _, p := range paths {
		if strings.HasSuffix(p, ".manifest.json") {
			return p
		}
	}
	return ""
}
