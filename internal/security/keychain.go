package security

import (
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	// KeychainService is the service name used for storing passwords in the keychain
	KeychainService = "cascade-core"
)

// Keychain provides secure password storage using the OS keychain. Entries
// are keyed by server address, so a descriptor without an inline password
// can be completed at connect time.
type Keychain struct{}

// NewKeychain creates a new keychain instance
func NewKeychain() *Keychain {
	return &Keychain{}
}

// StorePassword stores the password for a server in the OS keychain
func (k *Keychain) StorePassword(server string, password string) error {
	if password == "" {
		// Empty password, delete instead
		return k.DeletePassword(server)
	}
	if err := keyring.Set(KeychainService, server, password); err != nil {
		return fmt.Errorf("failed to store password in keychain: %w", err)
	}
	return nil
}

// GetPassword retrieves the password for a server from the OS keychain. A
// missing entry returns an empty password, not an error.
func (k *Keychain) GetPassword(server string) (string, error) {
	password, err := keyring.Get(KeychainService, server)
	if err != nil {
		if err == keyring.ErrNotFound {
			return "", nil
		}
		return "", fmt.Errorf("failed to get password from keychain: %w", err)
	}
	return password, nil
}

// DeletePassword removes the password for a server from the OS keychain
func (k *Keychain) DeletePassword(server string) error {
	if err := keyring.Delete(KeychainService, server); err != nil {
		if err == keyring.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete password from keychain: %w", err)
	}
	return nil
}
