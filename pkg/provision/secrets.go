// Package provision builds the host-side artifacts of a deployment: the
// generated deployment secrets and the command payloads a host tool sends
// to fobs.
package provision

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fobsec/keyfob/pkg/crypto"
	"github.com/fobsec/keyfob/pkg/securechannel"
)

// Secrets is the per-deployment secret material. It is generated once,
// kept by the deployment owner, and baked into the devices it provisions.
type Secrets struct {
	// CarID identifies the deployment's car in feature packages.
	CarID [securechannel.FeatureCarIDSize]byte

	// CarSecret is the unlock credential shared by the car and its
	// paired fobs.
	CarSecret [16]byte

	// FeatureKey encrypts feature packages.
	FeatureKey [crypto.KeySize]byte
}

// secretsFile is the on-disk JSON shape, hex-encoded per field.
type secretsFile struct {
	CarID      string `json:"car_id"`
	CarSecret  string `json:"car_secret"`
	FeatureKey string `json:"feature_key"`
}

// GenerateSecrets draws fresh deployment secrets from rand (nil means
// crypto/rand).
func GenerateSecrets(rnd io.Reader) (*Secrets, error) {
	if rnd == nil {
		rnd = rand.Reader
	}
	var s Secrets
	for _, field := range [][]byte{s.CarID[:], s.CarSecret[:], s.FeatureKey[:]} {
		if _, err := io.ReadFull(rnd, field); err != nil {
			return nil, fmt.Errorf("generate secrets: %w", err)
		}
	}
	return &s, nil
}

// LoadSecrets reads a secrets file written by SaveSecrets.
func LoadSecrets(path string) (*Secrets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load secrets: %w", err)
	}

	var f secretsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("load secrets: %w", err)
	}

	var s Secrets
	for _, field := range []struct {
		dst []byte
		hex string
	}{
		{s.CarID[:], f.CarID},
		{s.CarSecret[:], f.CarSecret},
		{s.FeatureKey[:], f.FeatureKey},
	} {
		raw, err := hex.DecodeString(field.hex)
		if err != nil {
			return nil, fmt.Errorf("load secrets: %w", err)
		}
		if len(raw) != len(field.dst) {
			return nil, fmt.Errorf("load secrets: bad field length %d", len(raw))
		}
		copy(field.dst, raw)
	}
	return &s, nil
}

// SaveSecrets writes the secrets as JSON, readable only by the owner.
func SaveSecrets(path string, s *Secrets) error {
	f := secretsFile{
		CarID:      hex.EncodeToString(s.CarID[:]),
		CarSecret:  hex.EncodeToString(s.CarSecret[:]),
		FeatureKey: hex.EncodeToString(s.FeatureKey[:]),
	}
	data, err := json.MarshalIndent(&f, "", "  ")
	if err != nil {
		return fmt.Errorf("save secrets: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("save secrets: %w", err)
	}
	return nil
}
