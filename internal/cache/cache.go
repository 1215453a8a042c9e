// Package cache persists the license token as a versioned encrypted blob on
// durable storage, bound to the device via key derivation.
package cache

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/LerianStudio/lib-commons/commons/log"
	"github.com/narravox/lib-guard-go/constant"
	"github.com/narravox/lib-guard-go/model"
	"golang.org/x/crypto/pbkdf2"
)

// Store reads and writes the encrypted license cache file. The symmetric key
// is derived from the device fingerprint and the application salt, so a blob
// copied to another machine fails integrity verification.
type Store struct {
	path   string
	key    []byte
	logger log.Logger
}

// NewStore creates a store for the given cache file path. The fingerprint
// binds the blob to the device; the application salt comes from required
// runtime configuration.
func NewStore(path, deviceFingerprint, appSalt string, logger log.Logger) *Store {
	return &Store{
		path:   path,
		key:    deriveKey(deviceFingerprint, appSalt),
		logger: logger,
	}
}

// deriveKey runs the slow iterated KDF binding the cache key to the device.
func deriveKey(deviceFingerprint, appSalt string) []byte {
	return pbkdf2.Key(
		[]byte(deviceFingerprint),
		[]byte(appSalt),
		constant.KDFIterations,
		constant.KDFKeyLen,
		sha256.New,
	)
}

// Save serializes the token, encrypts it with the current-best format and
// writes the whole file atomically with owner-only permissions.
func (s *Store) Save(token *model.LicenseToken) error {
	plaintext, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to serialize license token: %w", err)
	}

	payload, err := encryptV2(plaintext, s.key)
	if err != nil {
		return fmt.Errorf("failed to encrypt license token: %w", err)
	}

	content := tagV2 + base64.StdEncoding.EncodeToString(payload)

	if err := s.writeAtomic([]byte(content)); err != nil {
		return fmt.Errorf("failed to write license cache: %w", err)
	}

	return nil
}

// Load reads the cache file, inspects the version tag and decrypts with the
// matching routine. It returns false on any integrity or format failure,
// which callers treat as "no license". Blobs in an older format are
// re-saved in the current format on successful read.
func (s *Store) Load() (*model.LicenseToken, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, false
	}

	ver, encoded := splitVersionTag(data)

	payload, err := base64.StdEncoding.DecodeString(string(encoded))
	if err != nil {
		s.logger.Warnf("License cache is not valid base64, treating as no license: %v", err)
		return nil, false
	}

	plaintext, err := decrypt(ver, payload, s.key)
	if err != nil {
		s.logger.Warnf("License cache failed %s decryption, treating as no license: %v", ver, err)
		return nil, false
	}

	var token model.LicenseToken
	if err := json.Unmarshal(plaintext, &token); err != nil {
		s.logger.Warnf("License cache payload is not a valid token, treating as no license: %v", err)
		return nil, false
	}

	if ver != versionV2 {
		// Older formats are read-only; upgrade in place so the persisted
		// blob is always the newest format we support.
		if err := s.Save(&token); err != nil {
			s.logger.Warnf("Failed to upgrade %s license cache to %s: %v", ver, versionV2, err)
		} else {
			s.logger.Infof("Upgraded license cache from %s to %s format", ver, versionV2)
		}
	}

	return &token, true
}

// Delete removes the cache file. Missing files are not an error.
func (s *Store) Delete() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete license cache: %w", err)
	}

	return nil
}

// Path returns the cache file location.
func (s *Store) Path() string {
	return s.path
}

// writeAtomic writes via a temp file in the same directory plus rename so a
// crash never leaves a half-written cache.
func (s *Store) writeAtomic(content []byte) error {
	dir := filepath.Dir(s.path)

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".license-*")
	if err != nil {
		return err
	}

	tmpName := tmp.Name()

	defer func() {
		// Best-effort cleanup when any step below fails before the rename.
		_ = os.Remove(tmpName)
	}()

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return err
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpName, s.path)
}
