package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jt828/token-ledger/pkg/apperror"
	"github.com/jt828/token-ledger/pkg/circuitbreaker"
	"github.com/jt828/token-ledger/pkg/model"
	"github.com/jt828/token-ledger/pkg/retry"
	"gorm.io/gorm"
)

type TokenRepository interface {
	Get(ctx context.Context, id string) (*model.Token, error)
	GetByName(ctx context.Context, name string) (*model.Token, error)
	List(ctx context.Context) ([]*model.Token, error)
}

type TokenRepositoryImpl struct {
	db              *gorm.DB
	cb              circuitbreaker.CircuitBreaker
	retry           retry.Retry
	notFoundAsError bool
}

func NewTokenRepository(db *gorm.DB, cb circuitbreaker.CircuitBreaker, retry retry.Retry, notFoundAsError bool) TokenRepository {
	return &TokenRepositoryImpl{db: db, cb: cb, retry: retry, notFoundAsError: notFoundAsError}
}

func (r *TokenRepositoryImpl) Get(ctx context.Context, id string) (*model.Token, error) {
	token, err := r.take(ctx, "token "+id, "id = ?", id)
	return token, storageError("get token", err)
}

func (r *TokenRepositoryImpl) GetByName(ctx context.Context, name string) (*model.Token, error) {
	token, err := r.take(ctx, "token "+name, "lower(name) = lower(?)", name)
	return token, storageError("get token by name", err)
}

func (r *TokenRepositoryImpl) take(ctx context.Context, what string, where string, arg any) (*model.Token, error) {
	return execute(ctx, r.cb, r.retry, func() (*model.Token, error) {
		var entity model.TokenDataEntity
		if err := r.db.WithContext(ctx).Where(where, arg).Take(&entity).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				if r.notFoundAsError {
					return nil, fmt.Errorf("%s: %w", what, apperror.ErrNotFound)
				}
				return nil, nil
			}
			return nil, err
		}
		token := entity.ToDomain()
		return &token, nil
	})
}

func (r *TokenRepositoryImpl) List(ctx context.Context) ([]*model.Token, error) {
	tokens, err := execute(ctx, r.cb, r.retry, func() ([]*model.Token, error) {
		var entities []model.TokenDataEntity
		if err := r.db.WithContext(ctx).Order("id").Find(&entities).Error; err != nil {
			return nil, err
		}
		tokens := make([]*model.Token, len(entities))
		for i := range entities {
			t := entities[i].ToDomain()
			tokens[i] = &t
		}
		return tokens, nil
	})
	return tokens, storageError("list tokens", err)
}
