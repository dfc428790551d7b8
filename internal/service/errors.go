package service

import (
	"fmt"

	"github.com/google/uuid"
)

type ErrResourceNotFound struct {
	error
}

func NewErrResourceNotFound(id uuid.UUID, resourceType string) *ErrResourceNotFound {
	return &ErrResourceNotFound{fmt.Errorf("%s %s not found", resourceType, id)}
}

func NewErrJobNotFound(id uuid.UUID) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, "job")
}

func NewErrVideoNotFound(id uuid.UUID) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, "video")
}

type ErrInvalidJobRequest struct {
	error
}

func NewErrInvalidJobRequest(message string) *ErrInvalidJobRequest {
	return &ErrInvalidJobRequest{fmt.Errorf("bad request: %s", message)}
}
