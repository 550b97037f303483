package domain

import (
	"context"
	"errors"
)

type ListRequest struct {
	BranchID   string
	Action     string
	TargetType string
	TargetID   string
	Limit      int
}

type Service interface {
	// Record stores one mutation event. Failures must never fail the
	// mutation that triggered the record; callers log and move on.
	Record(ctx context.Context, action, targetType, targetID string, metadata map[string]any) error
	List(ctx context.Context, req ListRequest) ([]AuditLog, error)
}

var (
	ErrInvalidAction = errors.New("invalid_action")
	ErrInvalidLimit  = errors.New("invalid_limit")
)
