package sthree

import (
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/oneconcern/tilekeeper/pkg/errors"
	"github.com/oneconcern/tilekeeper/pkg/storage/status"
)

func filterErrNotExists(err error) error {
	if errors.Is(err, status.ErrNotExists) || errors.Is(err, status.ErrNotFound) {
		return nil
	}
	return err
}

func apiErrors(err awserr.RequestFailure) error {
	// handle S3 API errors
	// https://docs.aws.amazon.com/sdk-for-go/api/aws/awserr/#RequestFailure
	switch err.StatusCode() {
	case 400:
		if err.Code() == "InvalidBucketName" {
			return errors.New(err.Error()).Wrap(status.ErrInvalidResource)
		}
		return errors.New(err.Error()).Wrap(status.ErrStorageAPI)
	case 401:
		return errors.New(err.Error()).Wrap(status.ErrUnauthorized)
	case 403:
		return errors.New(err.Error()).Wrap(status.ErrForbidden)
	case 404:
		switch err.Code() {
		case "NoSuchKey", "NoSuchBucket", "NotFound": // NotFound is a code produced by minio and not an official AWS code
			return errors.New(err.Error()).Wrap(status.ErrNotExists)
		default:
			return errors.New(err.Error()).Wrap(status.ErrNotFound)
		}
	default:
		return errors.New(err.Error()).Wrap(status.ErrStorageAPI)
	}
}

func toSentinelErrors(err error) error {
	// return sentinel errors defined by the status package
	// see: https://docs.aws.amazon.com/AmazonS3/latest/API/ErrorResponses.html#ErrorCodeList
	if err == nil {
		return nil
	}
	if awsErr, isAWS := err.(awserr.RequestFailure); isAWS {
		return apiErrors(awsErr)
	}
	return err
}
