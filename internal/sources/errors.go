package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/mitchellh/mapstructure"

	"github.com/spigell/job-matcher/internal/listing"
)

var (
	ErrTimeout       = errors.New("source timeout")
	ErrUnavailable   = errors.New("source unavailable")
	ErrMalformedData = errors.New("source returned malformed data")
)

// Error is the only error shape adapters hand back to the aggregator.
type Error struct {
	Source string
	Kind   listing.ErrorKind
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Source, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Source, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrTimeout:
		return e.Kind == listing.SourceTimeout
	case ErrUnavailable:
		return e.Kind == listing.SourceUnavailable
	case ErrMalformedData:
		return e.Kind == listing.SourceMalformedData
	}
	return false
}

func Timeout(source string, err error) error {
	return &Error{Source: source, Kind: listing.SourceTimeout, Err: err}
}

func Unavailable(source string, err error) error {
	return &Error{Source: source, Kind: listing.SourceUnavailable, Err: err}
}

func Malformed(source string, err error) error {
	return &Error{Source: source, Kind: listing.SourceMalformedData, Err: err}
}

// Classify maps any error onto the source error taxonomy.
func Classify(err error) listing.ErrorKind {
	var serr *Error
	if errors.As(err, &serr) {
		return serr.Kind
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return listing.SourceTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return listing.SourceTimeout
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var decodeErr *mapstructure.Error
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.As(err, &decodeErr) {
		return listing.SourceMalformedData
	}

	return listing.SourceUnavailable
}

// Wrap converts err into an *Error for source, keeping an existing
// classification.
func Wrap(source string, err error) error {
	if err == nil {
		return nil
	}
	var serr *Error
	if errors.As(err, &serr) {
		return err
	}
	return &Error{Source: source, Kind: Classify(err), Err: err}
}

// CheckStatus turns a non-2xx response into a classified error.
func CheckStatus(source string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	err := fmt.Errorf("bad status: %s", resp.Status)
	switch resp.StatusCode {
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return Timeout(source, err)
	default:
		return Unavailable(source, err)
	}
}
