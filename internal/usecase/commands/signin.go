package commands

import "context"

type SignInCommands interface {
	Sign(ctx context.Context, userID uint64) error
	Streak(ctx context.Context, userID uint64) (int, error)
}

type signInCommandsImpl struct {
	tracker SignInTracker
}

func NewSignInCommands(tracker SignInTracker) SignInCommands {
	return &signInCommandsImpl{tracker: tracker}
}

func (c *signInCommandsImpl) Sign(ctx context.Context, userID uint64) error {
	return c.tracker.Sign(ctx, userID)
}

func (c *signInCommandsImpl) Streak(ctx context.Context, userID uint64) (int, error) {
	return c.tracker.StreakCount(ctx, userID)
}
