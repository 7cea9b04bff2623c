package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ManuelReschke/Bizdir/app/models"
)

const (
	packageKeyPrefix  = "package:"
	defaultPackageTTL = 10 * time.Minute
)

// PackageSource loads packages from the system of record.
type PackageSource interface {
	GetByID(ctx context.Context, id uint) (*models.Package, error)
}

// PackageCache is a read-through cache for package reference data.
// Packages are immutable from the billing code's point of view, so entries
// only expire by TTL.
type PackageCache struct {
	client *redis.Client
	source PackageSource
	ttl    time.Duration
	log    logrus.FieldLogger
}

// NewPackageCache wraps source with a Redis cache. A nil client disables
// caching.
func NewPackageCache(client *redis.Client, source PackageSource, log logrus.FieldLogger) *PackageCache {
	return &PackageCache{client: client, source: source, ttl: defaultPackageTTL, log: log}
}

// GetByID returns the package from Redis when present, else from the source.
func (c *PackageCache) GetByID(ctx context.Context, id uint) (*models.Package, error) {
	if c.client == nil {
		return c.source.GetByID(ctx, id)
	}

	key := packageKey(id)
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var pkg models.Package
		if err := json.Unmarshal(raw, &pkg); err == nil {
			return &pkg, nil
		}
		c.log.WithField("package_id", id).Warn("discarding unreadable cached package")
		_ = c.client.Del(ctx, key).Err()
	} else if !errors.Is(err, redis.Nil) {
		c.log.WithError(err).WithField("package_id", id).Warn("package cache read failed")
	}

	pkg, err := c.source.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(pkg); err == nil {
		if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.log.WithError(err).WithField("package_id", id).Warn("package cache write failed")
		}
	}
	return pkg, nil
}

// Invalidate drops a cached package, used after admin edits of packages.
func (c *PackageCache) Invalidate(ctx context.Context, id uint) error {
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, packageKey(id)).Err()
}

func packageKey(id uint) string {
	return fmt.Sprintf("%s%d", packageKeyPrefix, id)
}
