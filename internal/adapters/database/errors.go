package database

import (
	"context"
	"errors"
	"net"

	"github.com/satishbabariya/prisma-migrate/internal/core/migration/domain"
)

// ErrorClassifier returns the known error code of a driver error, or "" when
// the driver error has no user-facing mapping.
type ErrorClassifier func(err error) string

// MapDriverError converts err into a KnownError when the classifier or the
// network checks recognise it. Other errors are wrapped in a ConnectorError
// carrying the redacted connection info.
func MapDriverError(op string, err error, info domain.ConnectionInfo, classify ErrorClassifier) error {
	if err == nil {
		return nil
	}
	if _, ok := domain.AsKnownError(err); ok {
		return err
	}

	code := ""
	if classify != nil {
		code = classify(err)
	}
	if code == "" {
		code = networkCode(err)
	}

	switch code {
	case domain.CodeAuthenticationFailed:
		return domain.NewAuthenticationFailed(info)
	case domain.CodeDatabaseNotReachable:
		return domain.NewDatabaseNotReachable(info)
	case domain.CodeDatabaseTimeout:
		return domain.NewDatabaseTimeout(info)
	case domain.CodeDatabaseDoesNotExist:
		return domain.NewDatabaseDoesNotExist(info)
	case domain.CodeOperationTimeout:
		return domain.NewOperationTimeout(info)
	case domain.CodeDatabaseAlreadyExists:
		return domain.NewDatabaseAlreadyExists(info)
	case domain.CodeDatabaseAccessDenied:
		return domain.NewDatabaseAccessDenied(info)
	}
	return &domain.ConnectorError{Op: op, Info: info, Err: err}
}

func networkCode(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.CodeDatabaseTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.CodeDatabaseTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return domain.CodeDatabaseNotReachable
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return domain.CodeDatabaseNotReachable
	}
	return ""
}
