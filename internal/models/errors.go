package models

import "errors"

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrSubscriptionNotFound = errors.New("active subscription not found")
	ErrUnknownPlan          = errors.New("unknown plan")
)
