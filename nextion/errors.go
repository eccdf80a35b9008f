package nextion

import (
	"errors"
	"fmt"
)

// Errors returned by the protocol engine. Returned errors wrap one of these,
// so callers should test with errors.Is.
var (
	ErrCommandTooLong   = errors.New("command exceeds buffer capacity")
	ErrTransportWrite   = errors.New("transport write failed")
	ErrTransportRead    = errors.New("transport read failed")
	ErrMalformedFrame   = errors.New("malformed frame")
	ErrTruncated        = errors.New("string response truncated")
	ErrValueOutOfRange  = errors.New("value out of range")
	ErrUnrepresentable  = errors.New("value not representable in attribute width")
	ErrInvalidValue     = errors.New("invalid value")
	ErrTimedOut         = errors.New("timed out waiting for display")
	ErrNotReadable      = errors.New("attribute is not readable")
	ErrUnknownAttribute = errors.New("unknown attribute")
)

// Kind classifies an error returned by this package.
type Kind byte

const (
	KindNone Kind = iota
	KindEncoding
	KindTransport
	KindFraming
	KindValidation
	KindSemantic
	KindTimeout
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindEncoding:
		return "encoding"
	case KindTransport:
		return "transport"
	case KindFraming:
		return "framing"
	case KindValidation:
		return "validation"
	case KindSemantic:
		return "semantic"
	case KindTimeout:
		return "timeout"
	}
	return "other"
}

// KindOf returns the Kind of err. A nil error has KindNone.
func KindOf(err error) Kind {
	var de *DeviceError
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrTimedOut):
		return KindTimeout
	case errors.Is(err, ErrCommandTooLong):
		return KindEncoding
	case errors.Is(err, ErrTransportWrite), errors.Is(err, ErrTransportRead):
		return KindTransport
	case errors.As(err, &de):
		return KindSemantic
	case errors.Is(err, ErrMalformedFrame), errors.Is(err, ErrTruncated):
		return KindFraming
	case errors.Is(err, ErrValueOutOfRange), errors.Is(err, ErrUnrepresentable),
		errors.Is(err, ErrInvalidValue), errors.Is(err, ErrUnknownAttribute),
		errors.Is(err, ErrNotReadable):
		return KindValidation
	}
	return KindOther
}

// DeviceError is a rejection code reported by the display for the previous command.
type DeviceError struct {
	Code byte
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("display rejected command: %s (0x%02X)", statusName(e.Code), e.Code)
}

func statusName(code byte) string {
	switch code {
	case TagInvalidCmd:
		return "invalid instruction"
	case TagOK:
		return "ok"
	case TagInvalidComponentID:
		return "invalid component id"
	case TagInvalidPageID:
		return "invalid page id"
	case TagInvalidPictureID:
		return "invalid picture id"
	case TagInvalidFontID:
		return "invalid font id"
	case TagInvalidBaud:
		return "invalid baud rate"
	case TagInvalidVariable:
		return "invalid variable name or attribute"
	case TagInvalidOperation:
		return "invalid variable operation"
	}
	return fmt.Sprintf("unknown status code 0x%02X", code)
}
