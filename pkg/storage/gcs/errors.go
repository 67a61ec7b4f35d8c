package gcs

import (
	"net/http"
	"strings"

	gcsStorage "cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"github.com/oneconcern/tilekeeper/pkg/errors"
	"github.com/oneconcern/tilekeeper/pkg/storage/status"
)

func apiErrors(err *googleapi.Error) error {
	switch err.Code {
	case http.StatusBadRequest:
		if strings.Contains(err.Body, "bucket is not valid") {
			return errors.New(err.Error()).Wrap(status.ErrInvalidResource)
		}
		return errors.New(err.Error()).Wrap(status.ErrStorageAPI)
	case http.StatusUnauthorized:
		return errors.New(err.Error()).Wrap(status.ErrUnauthorized)
	case http.StatusForbidden:
		return errors.New(err.Error()).Wrap(status.ErrForbidden)
	case http.StatusNotFound:
		return errors.New(err.Error()).Wrap(status.ErrNotFound)
	case http.StatusPreconditionFailed:
		return errors.New(err.Error()).Wrap(status.ErrExists)
	default:
		return errors.New(err.Error()).Wrap(status.ErrStorageAPI)
	}
}

func toSentinelErrors(err error) error {
	// return sentinel errors defined by the status package
	if err == nil {
		return nil
	}
	if errors.Is(err, gcsStorage.ErrObjectNotExist) {
		return errors.New(err.Error()).Wrap(status.ErrNotExists)
	}
	var typedErr *googleapi.Error
	if errors.As(err, &typedErr) {
		return apiErrors(typedErr)
	}
	return err
}
