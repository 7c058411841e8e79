package utils

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/agrifocus/farmbooks_backend/config"
)

var mutex sync.Mutex

/* Redis object cache */

// Keys carry the tenant so a cache hit can never leak a row across
// tenants.

// store instance, obj should be a pointer
func StoreRedis[T any](tenantId string, id int, obj *T) error {
	key := fmt.Sprintf("%s:%s:%d", GetTypeName[T](), tenantId, id)
	return config.SetRedisObject(key, obj, GetCacheLifespan())
}

// retrieve instance into dest, returns found flag
func RetrieveRedis[T any](tenantId string, id int, dest *T) (bool, error) {
	key := fmt.Sprintf("%s:%s:%d", GetTypeName[T](), tenantId, id)
	return config.GetRedisObject(key, dest)
}

/* Sequence numbers */

// GetSequence issues the next per-tenant sequence number for model T.
// The counter lives in Redis, seeded from MAX(sequence_no) in the DB, and each
// candidate is re-validated against the DB so a stale counter never yields a
// duplicate. Single-process races are excluded by the package mutex; cross-
// instance races by the uniqueness re-check loop.
func GetSequence[T any](ctx context.Context, tenantId string) (int64, error) {
	var model T
	_ = model
	mutex.Lock()
	defer mutex.Unlock()
	cacheKey := tenantId + "-" + strings.ToLower(GetTypeName[T]()) + "_seq"
	var seqNo int64
	var err error
	db := config.GetDB()

	for {
		seqNo, err = config.GetRedisCounter(ctx, cacheKey)
		if err != nil {
			return 0, err
		}
		// if not found in redis (or redis disabled), seed from db
		if seqNo <= 1 {
			var dbSeq *int64
			if err := db.WithContext(ctx).Model(&model).Select("max(sequence_no)").
				Where("tenant_id = ?", tenantId).
				Scan(&dbSeq).Error; err != nil {
				return 0, err
			}
			if dbSeq == nil {
				seqNo = 0
			} else {
				seqNo = *dbSeq
			}
			seqNo++
			if err := config.SetRedisCounter(ctx, cacheKey, seqNo); err != nil {
				return 0, err
			}
		}
		// check if sequence number already exists in db
		err = ValidateUnique[T](ctx, tenantId, "sequence_no", seqNo, 0)
		if err == nil {
			break
		}
	}
	return seqNo, nil
}

func GetCacheLifespan() time.Duration {
	return time.Hour
}
