package utils

import (
	"context"

	"github.com/agrifocus/farmbooks_backend/config"
)

type ModelChangeLocker interface {
	CheckPostingLock(context.Context) error
}

/* DB fetching */

// fetch model from db
// (may return RecordNotFound)
func FetchSingleModel[T any](ctx context.Context, id int, associations ...string) (*T, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx)
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var result T
	err := dbCtx.First(&result, id).Error
	if err != nil {
		return nil, ErrorRecordNotFound
	}
	return &result, nil
}

// fetch model from db
// (tenant_id is used in query's WHERE, may return RecordNotFound)
func FetchModel[T any](ctx context.Context, tenantId string, id int, associations ...string) (*T, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("tenant_id = ?", tenantId)
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var result T
	err := dbCtx.First(&result, id).Error
	if err != nil {
		return nil, ErrorRecordNotFound
	}
	return &result, nil
}

// FetchCachedModel is FetchModel behind the redis object cache, for
// reference rows that never change after creation (items, machines,
// warehouses). With redis disabled it degrades to a plain fetch.
func FetchCachedModel[T any](ctx context.Context, tenantId string, id int) (*T, error) {
	var cached T
	found, err := RetrieveRedis[T](tenantId, id, &cached)
	if err != nil {
		return nil, err
	}
	if found {
		return &cached, nil
	}

	result, err := FetchModel[T](ctx, tenantId, id)
	if err != nil {
		return nil, err
	}
	if err := StoreRedis(tenantId, id, result); err != nil {
		return nil, err
	}
	return result, nil
}

// fetch model and check if model is locked by accounting period
func FetchModelForChange[T ModelChangeLocker](ctx context.Context, tenantId string, id int, associations ...string) (*T, error) {
	result, err := FetchModel[T](ctx, tenantId, id, associations...)
	if err != nil {
		return nil, err
	}
	if err := (*result).CheckPostingLock(ctx); err != nil {
		return nil, err
	}
	return result, nil
}

// fetch all models from db
// (tenant_id is used in query's WHERE)
func FetchAllModels[T any](ctx context.Context, tenantId string, associations ...string) ([]*T, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("tenant_id = ?", tenantId)
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var results []*T
	err := dbCtx.Find(&results).Error
	if err != nil {
		return nil, ErrorRecordNotFound
	}
	return results, nil
}
