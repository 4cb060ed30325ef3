package venv

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
)

const fingerprintFile = ".requirements.sha256"

// requirementsStale reports whether the requirements file differs from the
// fingerprint recorded at the last successful install, along with the current
// fingerprint. A missing requirements file means there is nothing to install.
func (m *Manager) requirementsStale() (bool, string, error) {
	data, err := os.ReadFile(m.requirements)
	if os.IsNotExist(err) {
		return false, "", nil
	}
	if err != nil {
		return false, "", err
	}

	sum := sha256.Sum256(data)
	current := hex.EncodeToString(sum[:])

	recorded, err := os.ReadFile(m.fingerprintPath())
	if os.IsNotExist(err) {
		return true, current, nil
	}
	if err != nil {
		return false, "", err
	}
	return strings.TrimSpace(string(recorded)) != current, current, nil
}

func (m *Manager) writeFingerprint(fp string) error {
	if fp == "" {
		return nil
	}
	return os.WriteFile(m.fingerprintPath(), []byte(fp+"\n"), 0o600)
}

func (m *Manager) fingerprintPath() string {
	return filepath.Join(m.dir, fingerprintFile)
}
