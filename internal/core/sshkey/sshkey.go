// Package sshkey inspects SSH private keys before they are handed to an agent.
// This is part of the Functional Core - all functions take key bytes and do no I/O.
//
// Passphrase-protected keys are accepted: the agent prompts for the
// passphrase, and OpenSSH-format keys still expose their public half.
package sshkey

import (
	"errors"

	"golang.org/x/crypto/ssh"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrEmptyKey is returned when the key file has no content.
	ErrEmptyKey = errors.New("SSH private key is empty")

	// ErrInvalidKey is returned when the SSH key cannot be parsed.
	ErrInvalidKey = errors.New("invalid SSH private key format")
)

// =============================================================================
// Inspection
// =============================================================================

// Info describes a parsed private key.
type Info struct {
	// Type is the public key algorithm, e.g. "ssh-ed25519".
	Type string

	// Fingerprint is the SHA256 fingerprint of the public key, or "" when
	// the key is encrypted in a format that hides it.
	Fingerprint string

	// Encrypted reports whether the key needs a passphrase.
	Encrypted bool
}

// Inspect parses privateKey and reports its type and fingerprint.
func Inspect(privateKey []byte) (Info, error) {
	if len(privateKey) == 0 {
		return Info{}, ErrEmptyKey
	}

	signer, err := ssh.ParsePrivateKey(privateKey)
	if err == nil {
		pub := signer.PublicKey()
		return Info{
			Type:        pub.Type(),
			Fingerprint: ssh.FingerprintSHA256(pub),
		}, nil
	}

	var missing *ssh.PassphraseMissingError
	if errors.As(err, &missing) {
		info := Info{Encrypted: true}
		if missing.PublicKey != nil {
			info.Type = missing.PublicKey.Type()
			info.Fingerprint = ssh.FingerprintSHA256(missing.PublicKey)
		}
		return info, nil
	}

	return Info{}, ErrInvalidKey
}

