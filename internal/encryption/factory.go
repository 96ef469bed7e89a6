package encryption

import (
	"fmt"

	"lcb-go/internal/config"
	"lcb-go/internal/lcb"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration
// type. Type "none" (the default) yields a nil Encryptor: vault uploads are
// stored in plaintext.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (lcb.Encryptor, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "age":
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
