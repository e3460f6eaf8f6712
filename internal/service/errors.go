package service

import "errors"

var (
	// ErrPermissionDenied means the caller does not own the resource.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrQuotaExceeded means the free-tier monthly message budget is spent.
	ErrQuotaExceeded = errors.New("monthly message quota exceeded")

	// ErrEmptyMessage means the request carried no content and no attachments.
	ErrEmptyMessage = errors.New("message has no content or attachments")
)
