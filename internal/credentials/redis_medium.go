package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nwl-centralize/backoffice/internal/apperrors"
	"github.com/nwl-centralize/backoffice/internal/config"
	"github.com/nwl-centralize/backoffice/internal/models"
	"github.com/redis/go-redis/v9"
)

// RedisMedium is the durable medium. Values expire after the TTL configured for their kind.
type RedisMedium struct {
	rdb       LimitedRedisClient
	encryptor Encryptor
	keyPrefix string
	ttls      map[models.TokenKind]time.Duration
}

func (r *RedisMedium) Name() string {
	return "redis"
}

func (r *RedisMedium) key(kind models.TokenKind) string {
	return r.keyPrefix + ":" + string(kind)
}

func (r *RedisMedium) Get(ctx context.Context, kind models.TokenKind) (models.Credential, error) {
	err := kind.Validate()
	if err != nil {
		return models.Credential{}, err
	}
	key := r.key(kind)
	raw, err := r.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.Credential{}, apperrors.ErrTokenNotFound
		}
		return models.Credential{}, err
	}
	value := raw
	if r.encryptor != nil {
		value, err = r.encryptor.Decrypt(raw)
		if err != nil {
			return models.Credential{}, fmt.Errorf("cannot decrypt %s: %w", kind, err)
		}
	}
	output := models.Credential{Kind: kind, Value: value, Persistent: true}
	ttl, err := r.rdb.PTTL(ctx, key).Result()
	if err == nil && ttl > 0 {
		output.ExpiresAt = time.Now().UTC().Add(ttl)
	}
	return output, nil
}

func (r *RedisMedium) Put(ctx context.Context, credential models.Credential) error {
	err := credential.Kind.Validate()
	if err != nil {
		return err
	}
	value := credential.Value
	if r.encryptor != nil {
		value, err = r.encryptor.Encrypt(value)
		if err != nil {
			return err
		}
	}
	ttl := r.ttls[credential.Kind]
	if !credential.ExpiresAt.IsZero() {
		ttl = time.Until(credential.ExpiresAt)
		if ttl <= 0 {
			return fmt.Errorf("credential %s is already expired", credential.Kind)
		}
	}
	slog.Debug(
		"CREDENTIAL STORE",
		"message",
		"saving durable credential",
		"credential",
		credential,
		"ttl",
		ttl,
	)
	return r.rdb.Set(ctx, r.key(credential.Kind), value, ttl).Err()
}

func (r *RedisMedium) Remove(ctx context.Context, kind models.TokenKind) (bool, error) {
	err := kind.Validate()
	if err != nil {
		return false, err
	}
	removed, err := r.rdb.Del(ctx, r.key(kind)).Result()
	if err != nil {
		return false, err
	}
	return removed > 0, nil
}

type RedisMediumOption func(*RedisMedium) error

// NewRedisClient creates the redis client described by the configuration.
func NewRedisClient(redisConfig config.RedisConfig) redis.UniversalClient {
	if redisConfig.IsSentinel {
		return redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:       redisConfig.MasterName,
			SentinelAddrs:    redisConfig.Addresses,
			Password:         string(redisConfig.Password),
			DB:               redisConfig.DBIndex,
			SentinelPassword: string(redisConfig.Password),
		})
	}
	return redis.NewClient(&redis.Options{
		Password: string(redisConfig.Password),
		DB:       redisConfig.DBIndex,
		Addr:     redisConfig.Addresses[0],
	})
}

func WithRedisClient(rdb LimitedRedisClient) RedisMediumOption {
	return func(r *RedisMedium) error {
		r.rdb = rdb
		return nil
	}
}

// WithCredentialsConfig sets the key namespace, the TTLs and the encryption from the configuration.
// It does not create the redis client, which is shared with the teardown signal.
func WithCredentialsConfig(cfg config.CredentialsConfig) RedisMediumOption {
	return func(r *RedisMedium) error {
		r.keyPrefix = KeyNamespace(cfg.KeyPrefix, cfg.Profile)
		r.ttls[models.AccessToken] = cfg.AccessTokenTTL
		r.ttls[models.RefreshToken] = cfg.RefreshTokenTTL
		if cfg.TokenEncryption.Enabled {
			return WithEncryption(string(cfg.TokenEncryption.SecretKey))(r)
		}
		return nil
	}
}

func WithEncryption(secretKey string) RedisMediumOption {
	return func(r *RedisMedium) error {
		encryptor, err := NewGCMEncryptor(secretKey)
		if err != nil {
			return err
		}
		r.encryptor = encryptor
		return nil
	}
}

func WithTTL(kind models.TokenKind, ttl time.Duration) RedisMediumOption {
	return func(r *RedisMedium) error {
		err := kind.Validate()
		if err != nil {
			return err
		}
		r.ttls[kind] = ttl
		return nil
	}
}

func WithKeyNamespace(namespace string) RedisMediumOption {
	return func(r *RedisMedium) error {
		r.keyPrefix = namespace
		return nil
	}
}

// KeyNamespace is the common prefix of the credential keys and teardown channels of one profile.
func KeyNamespace(prefix, profile string) string {
	return prefix + ":" + profile
}

func NewRedisMedium(options ...RedisMediumOption) (*RedisMedium, error) {
	r := RedisMedium{
		keyPrefix: KeyNamespace("backoffice", "default"),
		ttls: map[models.TokenKind]time.Duration{
			models.AccessToken:  6 * time.Hour,
			models.RefreshToken: 7 * 24 * time.Hour,
		},
	}
	for _, opt := range options {
		err := opt(&r)
		if err != nil {
			return &RedisMedium{}, err
		}
	}
	if r.rdb == nil {
		return &RedisMedium{}, fmt.Errorf("redis client is not initialized")
	}
	for kind, ttl := range r.ttls {
		if ttl <= 0 {
			return &RedisMedium{}, fmt.Errorf("invalid TTL %s for %s", ttl, kind)
		}
	}
	return &r, nil
}
