// Package protocol frames the agency batch protocol: a 4-byte metadata header, 79-byte bet
// records terminated by an END_MESSAGE sentinel, 9-byte acknowledgments terminated by an END
// sentinel, and the final winner document list. All integers are big-endian.
package protocol

import "errors"

const (
	MetadataSize = 4
	PacketSize   = 79
	AckSize      = 9
	DocumentSize = 4
	CountSize    = 2

	// MaxBatchSize is the largest batch the reference client sends: 103 packets.
	MaxBatchSize = 8137

	AgencySize    = 1
	FirstNameSize = 30
	LastNameSize  = 30
	BirthDateSize = 10
	NumberSize    = 4
)

const (
	endMessage    = "END_MESSAGE"
	ackEndMessage = "END"
)

var (
	ErrMalformedHeader           = errors.New("malformed header")
	ErrMalformedRecord           = errors.New("malformed record")
	ErrFieldTooLong              = errors.New("field exceeds its fixed width")
	ErrConnectionTerminatedEarly = errors.New("connection terminated early")
	ErrTooManyWinners            = errors.New("too many winners for a count:2 header")
)

var (
	endSentinel    = padded(endMessage, PacketSize)
	ackEndSentinel = padded(ackEndMessage, AckSize)
)

func padded(s string, size int) []byte {
	b := make([]byte, size)
	copy(b, s)
	return b
}
