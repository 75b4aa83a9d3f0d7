package aggregate

import (
	"context"
	"encoding/json"
	"errors"

	"ytmonitor/youtube"
)

// Failure kinds, as stored under "cause" in a serialized ChannelFailure.
const (
	KindInvalidReference = "invalid_reference"
	KindNotFound         = "not_found"
	KindAPI              = "api"
	KindTransport        = "transport"
	KindOther            = "other"
)

// failureCause is the part of a channel error that survives encoding.
type failureCause struct {
	Kind    string `json:"kind"`
	Op      string `json:"op,omitempty"`
	Status  int    `json:"status,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Subject string `json:"subject,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

func causeOf(err error) *failureCause {
	if err == nil {
		return nil
	}
	var (
		apiErr   *youtube.APIError
		transErr *youtube.TransportError
		refErr   *youtube.InvalidReferenceError
		resErr   *youtube.ResolutionError
	)
	switch {
	case errors.As(err, &apiErr):
		return &failureCause{Kind: KindAPI, Op: apiErr.Op, Status: apiErr.StatusCode, Reason: apiErr.Reason, Detail: apiErr.Message}
	case errors.As(err, &transErr):
		c := &failureCause{Kind: KindTransport, Op: transErr.Op}
		if transErr.Err != nil {
			c.Detail = transErr.Err.Error()
		}
		return c
	case errors.As(err, &refErr):
		return &failureCause{Kind: KindInvalidReference, Subject: refErr.Reference, Detail: refErr.Reason}
	case errors.As(err, &resErr):
		return &failureCause{Kind: KindNotFound, Subject: resErr.Reference, Detail: resErr.Query}
	default:
		return &failureCause{Kind: KindOther, Detail: err.Error()}
	}
}

// error rebuilds the typed error. Rebuilding the same cause always yields
// an equal value.
func (c *failureCause) error() error {
	if c == nil {
		return nil
	}
	switch c.Kind {
	case KindAPI:
		return &youtube.APIError{Op: c.Op, StatusCode: c.Status, Reason: c.Reason, Message: c.Detail}
	case KindTransport:
		var inner error
		switch c.Detail {
		case "":
		case context.DeadlineExceeded.Error():
			inner = context.DeadlineExceeded
		case context.Canceled.Error():
			inner = context.Canceled
		default:
			inner = errors.New(c.Detail)
		}
		return &youtube.TransportError{Op: c.Op, Err: inner}
	case KindInvalidReference:
		return &youtube.InvalidReferenceError{Reference: c.Subject, Reason: c.Detail}
	case KindNotFound:
		return &youtube.ResolutionError{Reference: c.Subject, Query: c.Detail}
	default:
		return errors.New(c.Detail)
	}
}

// normalizeFailure reduces err to the form a memo round trip produces.
func normalizeFailure(err error) error {
	return causeOf(err).error()
}

type channelFailureJSON struct {
	Reference string        `json:"reference"`
	Stage     string        `json:"stage"`
	Message   string        `json:"error"`
	Cause     *failureCause `json:"cause,omitempty"`
}

// Kind reports the failure kind, or "" when Err is nil.
func (f ChannelFailure) Kind() string {
	if c := causeOf(f.Err); c != nil {
		return c.Kind
	}
	return ""
}

func (f ChannelFailure) MarshalJSON() ([]byte, error) {
	return json.Marshal(channelFailureJSON{
		Reference: f.Reference,
		Stage:     f.Stage,
		Message:   f.Message,
		Cause:     causeOf(f.Err),
	})
}

func (f *ChannelFailure) UnmarshalJSON(data []byte) error {
	var raw channelFailureJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*f = ChannelFailure{
		Reference: raw.Reference,
		Stage:     raw.Stage,
		Message:   raw.Message,
		Err:       raw.Cause.error(),
	}
	return nil
}
