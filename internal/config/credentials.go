package config

import (
	"fmt"
	"time"
)

type TokenEncryptionConfig struct {
	Enabled   bool
	SecretKey RedactedString
}

// CredentialsConfig configures where the durable copies of the session tokens live.
// Profile separates the seats of different operators sharing one redis.
type CredentialsConfig struct {
	Redis           RedisConfig
	KeyPrefix       string
	Profile         string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	TokenEncryption TokenEncryptionConfig
}

func (c *CredentialsConfig) Validate() error {
	err := c.Redis.Validate()
	if err != nil {
		return err
	}
	if c.Profile == "" {
		return fmt.Errorf("a credentials profile has to be provided")
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return fmt.Errorf("token TTLs have to be positive (access %s, refresh %s)", c.AccessTokenTTL, c.RefreshTokenTTL)
	}
	if c.TokenEncryption.Enabled && len(c.TokenEncryption.SecretKey) != 32 {
		return fmt.Errorf(
			"token encryption key has to be 32 bytes long, the provided one is %d long",
			len(c.TokenEncryption.SecretKey),
		)
	}
	return nil
}
