// Package user provides helpers for user registration on first contact.
package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"line_subscription_bot/internal/domain"
	"line_subscription_bot/internal/line"
	"line_subscription_bot/internal/logging"
)

type userStore interface {
	Get(ctx context.Context, lineID string) (domain.User, error)
	Create(ctx context.Context, user domain.User) (domain.User, error)
	UpdateDisplayName(ctx context.Context, lineID, displayName string) error
}

// Registrar ensures a user record exists for every LINE id that messages the
// bot and keeps its display name in step with the LINE profile. Profiles are
// looked up on every message, so callers should pass a cached fetcher.
type Registrar struct {
	users    userStore
	profiles line.ProfileFetcher
	logger   *logrus.Entry
}

// NewRegistrar constructs a Registrar. profiles may be nil, in which case users
// are stored without a display name.
func NewRegistrar(users userStore, profiles line.ProfileFetcher, logger *logrus.Entry) *Registrar {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Registrar{
		users:    users,
		profiles: profiles,
		logger:   logger,
	}
}

// EnsureUser returns the stored user for lineID, creating it with status idle
// when it does not exist yet. created reports whether a record was inserted.
func (r *Registrar) EnsureUser(ctx context.Context, lineID string) (domain.User, bool, error) {
	if r == nil || r.users == nil {
		return domain.User{}, false, errors.New("user registrar is not initialized")
	}
	if ctx == nil {
		return domain.User{}, false, errors.New("context is required")
	}
	if strings.TrimSpace(lineID) == "" {
		return domain.User{}, false, errors.New("line id is required")
	}

	existing, err := r.users.Get(ctx, lineID)
	if err == nil {
		r.logger.WithFields(logging.Fields{
			"event":   "user_seen",
			"line_id": lineID,
			"status":  existing.Status.String(),
		}).Debug("found existing user")
		return r.refreshDisplayName(ctx, existing), false, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return domain.User{}, false, fmt.Errorf("lookup user: %w", err)
	}

	created, err := r.users.Create(ctx, domain.User{
		LineID:      lineID,
		DisplayName: r.displayName(ctx, lineID),
		Status:      domain.StatusIdle,
		Role:        domain.RoleUser,
	})
	if errors.Is(err, domain.ErrUserExists) {
		// A concurrent delivery created the record first.
		existing, getErr := r.users.Get(ctx, lineID)
		if getErr != nil {
			return domain.User{}, false, fmt.Errorf("reload user after conflict: %w", getErr)
		}
		return existing, false, nil
	}
	if err != nil {
		return domain.User{}, false, fmt.Errorf("create user: %w", err)
	}

	r.logger.WithFields(logging.Fields{
		"event":   "user_registered",
		"line_id": lineID,
	}).Info("registered new user")

	return created, true, nil
}

// refreshDisplayName stores the current profile name when it differs from the
// stored one. Failures keep the stored name.
func (r *Registrar) refreshDisplayName(ctx context.Context, user domain.User) domain.User {
	if r.profiles == nil {
		return user
	}

	profile, err := r.profiles.Profile(ctx, user.LineID)
	if err != nil {
		r.logger.WithFields(logging.Fields{
			"event":   "profile_lookup_failed",
			"line_id": user.LineID,
		}).WithError(err).Debug("could not refresh line profile")
		return user
	}
	if profile.DisplayName == "" || profile.DisplayName == user.DisplayName {
		return user
	}

	if err := r.users.UpdateDisplayName(ctx, user.LineID, profile.DisplayName); err != nil {
		r.logger.WithFields(logging.Fields{
			"event":   "display_name_update_failed",
			"line_id": user.LineID,
		}).WithError(err).Warn("could not store refreshed display name")
		return user
	}

	r.logger.WithFields(logging.Fields{
		"event":   "display_name_updated",
		"line_id": user.LineID,
	}).Info("updated user display name")

	user.DisplayName = profile.DisplayName
	return user
}

func (r *Registrar) displayName(ctx context.Context, lineID string) string {
	if r.profiles == nil {
		return ""
	}

	profile, err := r.profiles.Profile(ctx, lineID)
	if err != nil {
		r.logger.WithFields(logging.Fields{
			"event":   "profile_lookup_failed",
			"line_id": lineID,
		}).WithError(err).Warn("could not fetch line profile, storing user without display name")
		return ""
	}

	return profile.DisplayName
}
