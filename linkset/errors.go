package linkset

import "errors"

var (
	ErrNotFixedLayout    = errors.New("payload type does not have a fixed, self-contained layout")
	ErrZeroSizedPayload  = errors.New("payload type has zero size")
	ErrMixedPayloadTypes = errors.New("set already holds records of a different payload type")
	ErrBadRecordSize     = errors.New("record size must be positive")
	ErrTruncatedSection  = errors.New("section length is not a multiple of the record size")
	ErrBadBounds         = errors.New("section end precedes its start")
	ErrSectionNotFound   = errors.New("section not found in image")
	ErrUnknownImage      = errors.New("image is neither an ELF nor a Mach-O binary")
	ErrDecodeTarget      = errors.New("decode target must be a non-nil pointer to the payload type")
)
