package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrUserNotFound is returned when no user matches the requested LINE id.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when creating a user whose LINE id is already stored.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidStatus is returned for status values outside the known set.
	ErrInvalidStatus = errors.New("invalid user status")
)

type userCollection interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

// UserRepository persists and retrieves users in MongoDB, keyed by LINE id.
type UserRepository struct {
	collection userCollection
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(collection userCollection) *UserRepository {
	return &UserRepository{collection: collection}
}

// Create inserts a user with populated timestamps and a fresh group id,
// defaulting the role to RoleUser when omitted.
func (r *UserRepository) Create(ctx context.Context, user User) (User, error) {
	if err := r.check(ctx); err != nil {
		return User{}, err
	}
	if strings.TrimSpace(user.LineID) == "" {
		return User{}, errors.New("line_id is required")
	}
	if !user.Status.Valid() {
		return User{}, fmt.Errorf("%w: %d", ErrInvalidStatus, user.Status)
	}
	if user.Role == "" {
		user.Role = RoleUser
	}
	if user.GroupID == "" {
		user.GroupID = uuid.NewString()
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return User{}, fmt.Errorf("insert user %s: %w", user.LineID, ErrUserExists)
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}

	return user, nil
}

// Get fetches a user by LINE id.
func (r *UserRepository) Get(ctx context.Context, lineID string) (User, error) {
	if err := r.check(ctx); err != nil {
		return User{}, err
	}
	if strings.TrimSpace(lineID) == "" {
		return User{}, errors.New("line_id is required")
	}

	result := r.collection.FindOne(ctx, bson.M{"line_id": lineID})
	if result == nil {
		return User{}, errors.New("find user returned no result")
	}
	if err := result.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("find user: %w", err)
	}

	var user User
	if err := result.Decode(&user); err != nil {
		return User{}, fmt.Errorf("decode user: %w", err)
	}

	return user, nil
}

// UpdateStatus sets the conversation status of an existing user.
func (r *UserRepository) UpdateStatus(ctx context.Context, lineID string, status UserStatus) error {
	if err := r.check(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(lineID) == "" {
		return errors.New("line_id is required")
	}
	if !status.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidStatus, status)
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"line_id": lineID},
		bson.M{"$set": bson.M{
			"status":     status,
			"updated_at": time.Now().UTC().Truncate(time.Millisecond),
		}},
	)
	if err != nil {
		return fmt.Errorf("update user status: %w", err)
	}
	if result != nil && result.MatchedCount == 0 {
		return ErrUserNotFound
	}

	return nil
}

// UpdateDisplayName replaces the stored display name of an existing user.
func (r *UserRepository) UpdateDisplayName(ctx context.Context, lineID, displayName string) error {
	if err := r.check(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(lineID) == "" {
		return errors.New("line_id is required")
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"line_id": lineID},
		bson.M{"$set": bson.M{
			"display_name": displayName,
			"updated_at":   time.Now().UTC().Truncate(time.Millisecond),
		}},
	)
	if err != nil {
		return fmt.Errorf("update user display name: %w", err)
	}
	if result != nil && result.MatchedCount == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (r *UserRepository) check(ctx context.Context) error {
	if r == nil || r.collection == nil {
		return errors.New("user repository is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	return nil
}
