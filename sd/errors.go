package sd

import (
	"errors"
)

// Error taxonomy, mirroring the negative-integer codes of the original
// driver one sentinel at a time so callers can use errors.Is.
var (
	ErrWouldBlock     = errors.New("sd: would block")
	ErrUnsupported    = errors.New("sd: unsupported operation")
	ErrParameter      = errors.New("sd: invalid parameter")
	ErrNoInit         = errors.New("sd: card not initialized")
	ErrNoDevice       = errors.New("sd: no device")
	ErrWriteProtected = errors.New("sd: write protected")
	ErrUnusable       = errors.New("sd: unusable card")
	ErrNoResponse     = errors.New("sd: no response from device")
	ErrCRC            = errors.New("sd: crc error")
	ErrErase          = errors.New("sd: erase error")
	ErrWrite          = errors.New("sd: write error")
)

// response1Err wraps a decoded R1 status byte so the error message carries
// the flags the card actually set, the way a debug log line would.
type response1Err struct {
	context string
	status  response1
}

func (e response1Err) Error() string {
	if e.context != "" {
		return "sd: " + e.context + " " + e.status.String()
	}
	return "sd: status " + e.status.String()
}

// Unwrap lets callers match the generic sentinel underneath a decorated
// response error, e.g. errors.Is(err, ErrCRC).
func (e response1Err) Unwrap() error {
	switch {
	case e.status.CRCError():
		return ErrCRC
	case e.status.IllegalCmdError(), e.status.ParamError(), e.status.AddressError():
		return ErrUnusable
	case e.status.EraseSeqError(), e.status.EraseReset():
		return ErrErase
	default:
		return ErrNoResponse
	}
}

func responseError(context string, status response1) error {
	return response1Err{context: context, status: status}
}
