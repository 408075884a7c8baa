package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenRepo keeps the revocation list of refresh token ids (jti) in Redis.
// Entries expire together with the token they revoke.  A TokenRepo
// without a client accepts every token, so the service still runs when
// Redis is not configured.
type TokenRepo struct {
	rdb    *redis.Client
	prefix string
}

func NewTokenRepo(rdb *redis.Client) *TokenRepo {
	return &TokenRepo{rdb: rdb, prefix: "catalog:revoked:"}
}

// Revoke marks jti as unusable until the given time.
func (r *TokenRepo) Revoke(ctx context.Context, jti string, until time.Time) error {
	if r == nil || r.rdb == nil || jti == "" {
		return nil
	}
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return r.rdb.Set(ctx, r.prefix+jti, 1, ttl).Err()
}

// Consume revokes jti until the given time and reports whether this call
// was the one that did it.  SETNX makes the check and the revocation one
// step, so of two refreshes racing on the same token only one wins.
func (r *TokenRepo) Consume(ctx context.Context, jti string, until time.Time) (bool, error) {
	if r == nil || r.rdb == nil || jti == "" {
		return true, nil
	}
	ttl := time.Until(until)
	if ttl <= 0 {
		return false, nil
	}
	return r.rdb.SetNX(ctx, r.prefix+jti, 1, ttl).Result()
}
