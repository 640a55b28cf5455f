package handler

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dtroode/profilesync/internal/model"
)

func handleError(err error) error {
	var validationErr *model.ValidationError
	if errors.As(err, &validationErr) {
		return status.Error(codes.InvalidArgument, validationErr.Error())
	}

	switch {
	case errors.Is(err, model.ErrOwnerRequired):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, model.ErrNotFound):
		return status.Error(codes.NotFound, "profile not found")
	default:
		return status.Error(codes.Internal, "internal server error")
	}
}
