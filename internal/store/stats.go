package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"line_subscription_bot/internal/domain"
)

type countCollection interface {
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
}

// StatsProvider exposes collection counts for basic diagnostics without
// leaking MongoDB internals to callers.
type StatsProvider struct {
	users countCollection
}

// NewStatsProvider constructs a StatsProvider backed by the users collection.
func NewStatsProvider(users countCollection) *StatsProvider {
	return &StatsProvider{users: users}
}

// CountUsers returns the number of documents in the users collection.
func (p *StatsProvider) CountUsers(ctx context.Context) (int64, error) {
	return p.count(ctx, bson.D{})
}

// CountByStatus returns the number of users currently in status.
func (p *StatsProvider) CountByStatus(ctx context.Context, status domain.UserStatus) (int64, error) {
	if !status.Valid() {
		return 0, fmt.Errorf("%w: %d", domain.ErrInvalidStatus, status)
	}
	return p.count(ctx, bson.D{{Key: "status", Value: status}})
}

func (p *StatsProvider) count(ctx context.Context, filter bson.D) (int64, error) {
	if ctx == nil {
		return 0, errors.New("context is required")
	}
	if p == nil || p.users == nil {
		return 0, errors.New("stats provider is not initialized")
	}

	count, err := p.users.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}

	return count, nil
}
