package service

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dtroode/profilesync/internal/model"
)

// retryableCodes are remote failures that may succeed on a later attempt.
var retryableCodes = map[model.ErrorCode]struct{}{
	model.CodeUnavailable:       {},
	model.CodeDeadlineExceeded:  {},
	model.CodeResourceExhausted: {},
	model.CodeAborted:           {},
	model.CodeInternal:          {},
	model.CodeUnknown:           {},
	model.CodeCancelled:         {},
	// The record this mutation depends on may still be waiting in the queue.
	model.CodeNotFound: {},
}

// permanentCodes are remote failures that no retry can fix.
var permanentCodes = map[model.ErrorCode]struct{}{
	model.CodePermissionDenied:   {},
	model.CodeUnauthenticated:    {},
	model.CodeInvalidArgument:    {},
	model.CodeFailedPrecondition: {},
	model.CodeOutOfRange:         {},
	model.CodeUnimplemented:      {},
	model.CodeAlreadyExists:      {},
}

// IsRetryable reports whether a failed mutation should be queued for another
// attempt. Validation errors never are; unclassified errors always are.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var validationErr *model.ValidationError
	if errors.As(err, &validationErr) {
		return false
	}

	if code, ok := ErrorCodeOf(err); ok {
		if _, ok := retryableCodes[code]; ok {
			return true
		}
		if _, ok := permanentCodes[code]; ok {
			return false
		}
	}

	return true
}

// IsPermanentRemote reports whether err is a remote failure classified as
// permanent. Local validation errors are not remote failures.
func IsPermanentRemote(err error) bool {
	code, ok := ErrorCodeOf(err)
	if !ok {
		return false
	}
	_, permanent := permanentCodes[code]
	return permanent
}

// ErrorCodeOf extracts a classification code from a remote, gRPC status or
// context error.
func ErrorCodeOf(err error) (model.ErrorCode, bool) {
	var remoteErr *model.RemoteError
	if errors.As(err, &remoteErr) {
		return remoteErr.Code, true
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return model.CodeDeadlineExceeded, true
	case errors.Is(err, context.Canceled):
		return model.CodeCancelled, true
	}

	if st, ok := status.FromError(err); ok && st.Code() != codes.OK {
		return CodeFromGRPC(st.Code()), true
	}

	return "", false
}

// CodeFromGRPC maps a gRPC status code onto the remote error taxonomy.
func CodeFromGRPC(code codes.Code) model.ErrorCode {
	switch code {
	case codes.Unavailable:
		return model.CodeUnavailable
	case codes.DeadlineExceeded:
		return model.CodeDeadlineExceeded
	case codes.ResourceExhausted:
		return model.CodeResourceExhausted
	case codes.Aborted:
		return model.CodeAborted
	case codes.Internal, codes.DataLoss:
		return model.CodeInternal
	case codes.Canceled:
		return model.CodeCancelled
	case codes.NotFound:
		return model.CodeNotFound
	case codes.PermissionDenied:
		return model.CodePermissionDenied
	case codes.Unauthenticated:
		return model.CodeUnauthenticated
	case codes.InvalidArgument:
		return model.CodeInvalidArgument
	case codes.FailedPrecondition:
		return model.CodeFailedPrecondition
	case codes.OutOfRange:
		return model.CodeOutOfRange
	case codes.Unimplemented:
		return model.CodeUnimplemented
	case codes.AlreadyExists:
		return model.CodeAlreadyExists
	default:
		return model.CodeUnknown
	}
}
