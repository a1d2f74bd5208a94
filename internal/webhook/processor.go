package webhook

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"line_subscription_bot/internal/domain"
	"line_subscription_bot/internal/feature/subscription"
	"line_subscription_bot/internal/line"
	"line_subscription_bot/internal/logging"
)

// ErrMissingUserID is returned for message events whose source has no user id,
// such as messages from users who have not consented to profile access.
var ErrMissingUserID = errors.New("event source has no user id")

type userRegistrar interface {
	EnsureUser(ctx context.Context, lineID string) (domain.User, bool, error)
}

type statusStore interface {
	UpdateStatus(ctx context.Context, lineID string, status domain.UserStatus) error
}

type replier interface {
	Reply(ctx context.Context, replyToken string, messages ...line.Message) error
}

type profileForgetter interface {
	Forget(userID string)
}

// Processor handles one webhook event at a time.
type Processor struct {
	users    userRegistrar
	statuses statusStore
	resolver *subscription.Resolver
	replies  replier
	profiles profileForgetter
	logger   *logrus.Entry
}

// ProcessorOption customizes a Processor.
type ProcessorOption func(*Processor)

// WithProfileForgetter evicts cached profiles when a user unfollows the bot.
func WithProfileForgetter(f profileForgetter) ProcessorOption {
	return func(p *Processor) {
		p.profiles = f
	}
}

// NewProcessor wires the collaborators used for every event.
func NewProcessor(users userRegistrar, statuses statusStore, resolver *subscription.Resolver, replies replier, logger *logrus.Entry, opts ...ProcessorOption) (*Processor, error) {
	if users == nil || statuses == nil || replies == nil {
		return nil, errors.New("processor requires user registrar, status store and replier")
	}
	if resolver == nil {
		resolver = subscription.NewResolver(nil)
	}
	if logger == nil {
		logger = logging.Logger()
	}

	p := &Processor{
		users:    users,
		statuses: statuses,
		resolver: resolver,
		replies:  replies,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Process handles a single event. Unsupported events are skipped and reported
// as handled=false. The returned error is for logging only.
func (p *Processor) Process(ctx context.Context, event Event) (bool, error) {
	switch event.Type {
	case EventTypeMessage:
		return p.processMessage(ctx, event)
	case EventTypeUnfollow:
		if p.profiles != nil && event.Source.UserID != "" {
			p.profiles.Forget(event.Source.UserID)
		}
		return true, nil
	default:
		return false, nil
	}
}

func (p *Processor) processMessage(ctx context.Context, event Event) (bool, error) {
	lineID := event.Source.UserID
	if lineID == "" {
		return false, ErrMissingUserID
	}

	user, _, err := p.users.EnsureUser(ctx, lineID)
	if err != nil {
		return false, fmt.Errorf("ensure user: %w", err)
	}

	if !event.IsText() {
		return false, nil
	}

	outcome := p.resolver.Resolve(event.Message.Text, user)

	// The new status is stored before replying so the next message is
	// resolved against it.
	if outcome.StatusChanged(user.Status) {
		if err := p.statuses.UpdateStatus(ctx, lineID, outcome.Status); err != nil {
			return false, fmt.Errorf("update status: %w", err)
		}
		statusTransitionsTotal.WithLabelValues(outcome.Status.String()).Inc()

		p.logger.WithFields(logging.Fields{
			"event":   "user_status_changed",
			"line_id": lineID,
			"from":    user.Status.String(),
			"to":      outcome.Status.String(),
		}).Info("updated user status")
	}

	if err := p.replies.Reply(ctx, event.ReplyToken, line.TextMessage(outcome.Reply)); err != nil {
		repliesTotal.WithLabelValues("error").Inc()
		return false, fmt.Errorf("reply: %w", err)
	}
	repliesTotal.WithLabelValues("ok").Inc()

	return true, nil
}
