package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/siltvcs/silt/pkg/repo"
)

const commitSignaturePrefix = "sshsig-v1"

// newSSHCommitSigner loads an SSH private key and returns a signer that
// produces "sshsig-v1:<format>:<pubkey-b64>:<sig-b64>" signatures.
func newSSHCommitSigner(keyPath string) (repo.CommitSigner, string, error) {
	resolvedPath, err := resolveSigningKeyPath(keyPath)
	if err != nil {
		return nil, "", err
	}

	raw, err := os.ReadFile(resolvedPath)
	if err != nil {
		return nil, "", fmt.Errorf("read signing key %q: %w", resolvedPath, err)
	}
	signer, err := ssh.ParsePrivateKey(raw)
	if err != nil {
		return nil, "", fmt.Errorf("parse signing key %q: %w", resolvedPath, err)
	}

	pub := signer.PublicKey()
	pubB64 := base64.StdEncoding.EncodeToString(pub.Marshal())

	commitSigner := func(payload []byte) (string, error) {
		sig, err := signer.Sign(rand.Reader, payload)
		if err != nil {
			return "", err
		}
		sigB64 := base64.StdEncoding.EncodeToString(sig.Blob)
		return fmt.Sprintf("%s:%s:%s:%s", commitSignaturePrefix, sig.Format, pubB64, sigB64), nil
	}
	return commitSigner, resolvedPath, nil
}

// verifySSHCommitSignature checks a signature produced by
// newSSHCommitSigner against the given payload. It returns the signing
// public key's type on success.
func verifySSHCommitSignature(signature string, payload []byte) (string, error) {
	parts := strings.SplitN(signature, ":", 4)
	if len(parts) != 4 || parts[0] != commitSignaturePrefix {
		return "", fmt.Errorf("unrecognized signature format")
	}
	format, pubB64, sigB64 := parts[1], parts[2], parts[3]

	pubRaw, err := base64.StdEncoding.DecodeString(pubB64)
	if err != nil {
		return "", fmt.Errorf("decode public key: %w", err)
	}
	pub, err := ssh.ParsePublicKey(pubRaw)
	if err != nil {
		return "", fmt.Errorf("parse public key: %w", err)
	}

	sigRaw, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return "", fmt.Errorf("decode signature: %w", err)
	}

	if err := pub.Verify(payload, &ssh.Signature{Format: format, Blob: sigRaw}); err != nil {
		return "", fmt.Errorf("signature verification failed: %w", err)
	}
	return pub.Type(), nil
}

func resolveSigningKeyPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path != "" {
		expanded, err := expandUserPath(path)
		if err != nil {
			return "", err
		}
		return expanded, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	candidates := []string{
		filepath.Join(home, ".ssh", "id_ed25519"),
		filepath.Join(home, ".ssh", "id_ecdsa"),
		filepath.Join(home, ".ssh", "id_rsa"),
	}
	for _, candidate := range candidates {
		if st, err := os.Stat(candidate); err == nil && !st.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no default SSH private key found in ~/.ssh (id_ed25519, id_ecdsa, id_rsa)")
}

func expandUserPath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}
	return filepath.Abs(path)
}
