package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"

	"lottery/database/model"
)

// Metadata is the header a client sends once per connection.
type Metadata struct {
	BatchSize uint16
	Agency    uint16
}

// Ack is the server's per-record acknowledgment.
type Ack struct {
	Document   uint32
	Number     uint32
	StatusCode uint8
}

func DecodeMetadata(data []byte) (Metadata, error) {
	if len(data) < MetadataSize {
		return Metadata{}, fmt.Errorf("%w: got %d of %d bytes", ErrMalformedHeader, len(data), MetadataSize)
	}
	return Metadata{
		BatchSize: binary.BigEndian.Uint16(data[0:2]),
		Agency:    binary.BigEndian.Uint16(data[2:4]),
	}, nil
}

func EncodeMetadata(m Metadata) []byte {
	buf := make([]byte, MetadataSize)
	binary.BigEndian.PutUint16(buf[0:2], m.BatchSize)
	binary.BigEndian.PutUint16(buf[2:4], m.Agency)
	return buf
}

// Validate checks the declared batch capacity against maxBatch and the agency against the
// one-byte range a bet record can carry.
func (m Metadata) Validate(maxBatch int) error {
	switch {
	case m.BatchSize == 0 || int(m.BatchSize)%PacketSize != 0:
		return fmt.Errorf("%w: batch size %d is not a positive multiple of %d", ErrMalformedHeader, m.BatchSize, PacketSize)
	case int(m.BatchSize) > maxBatch:
		return fmt.Errorf("%w: batch size %d exceeds %d", ErrMalformedHeader, m.BatchSize, maxBatch)
	case m.Agency == 0 || m.Agency > 0xff:
		return fmt.Errorf("%w: agency %d out of range", ErrMalformedHeader, m.Agency)
	}
	return nil
}

// Capacity is the number of bet records that fit in one batch.
func (m Metadata) Capacity() int {
	return int(m.BatchSize) / PacketSize
}

func DecodeBet(data []byte) (model.Bet, error) {
	if len(data) != PacketSize {
		return model.Bet{}, fmt.Errorf("%w: got %d of %d bytes", ErrMalformedRecord, len(data), PacketSize)
	}
	var bet model.Bet
	var err error
	off := 0

	bet.Agency = data[off]
	off += AgencySize

	if bet.FirstName, err = readPadded(data[off : off+FirstNameSize]); err != nil {
		return model.Bet{}, fmt.Errorf("first name: %w", err)
	}
	off += FirstNameSize

	if bet.LastName, err = readPadded(data[off : off+LastNameSize]); err != nil {
		return model.Bet{}, fmt.Errorf("last name: %w", err)
	}
	off += LastNameSize

	bet.Document = binary.BigEndian.Uint32(data[off : off+DocumentSize])
	off += DocumentSize

	if bet.BirthDate, err = readPadded(data[off : off+BirthDateSize]); err != nil {
		return model.Bet{}, fmt.Errorf("birth date: %w", err)
	}
	off += BirthDateSize

	bet.Number = binary.BigEndian.Uint32(data[off : off+NumberSize])
	return bet, nil
}

func EncodeBet(bet model.Bet) ([]byte, error) {
	buf := make([]byte, 0, PacketSize)
	buf = append(buf, bet.Agency)

	var err error
	if buf, err = appendPadded(buf, bet.FirstName, FirstNameSize); err != nil {
		return nil, fmt.Errorf("first name: %w", err)
	}
	if buf, err = appendPadded(buf, bet.LastName, LastNameSize); err != nil {
		return nil, fmt.Errorf("last name: %w", err)
	}
	buf = binary.BigEndian.AppendUint32(buf, bet.Document)
	if buf, err = appendPadded(buf, bet.BirthDate, BirthDateSize); err != nil {
		return nil, fmt.Errorf("birth date: %w", err)
	}
	buf = binary.BigEndian.AppendUint32(buf, bet.Number)
	return buf, nil
}

// readPadded trims the zero padding of a fixed-width text field. Anything other than zeros
// after the first zero byte, or invalid UTF-8 in the text itself, is rejected.
func readPadded(field []byte) (string, error) {
	text := field
	if i := bytes.IndexByte(field, 0); i >= 0 {
		for _, b := range field[i:] {
			if b != 0 {
				return "", fmt.Errorf("%w: data after padding", ErrMalformedRecord)
			}
		}
		text = field[:i]
	}
	if !utf8.Valid(text) {
		return "", fmt.Errorf("%w: invalid utf-8", ErrMalformedRecord)
	}
	return string(text), nil
}

func appendPadded(buf []byte, s string, size int) ([]byte, error) {
	if len(s) > size {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrFieldTooLong, len(s), size)
	}
	buf = append(buf, s...)
	return append(buf, make([]byte, size-len(s))...), nil
}

func IsEndSentinel(chunk []byte) bool {
	return bytes.Equal(chunk, endSentinel)
}

// EndSentinel returns a fresh copy of the batch end marker.
func EndSentinel() []byte {
	return bytes.Clone(endSentinel)
}

func AckEndSentinel() []byte {
	return bytes.Clone(ackEndSentinel)
}

func IsAckEndSentinel(chunk []byte) bool {
	return bytes.Equal(chunk, ackEndSentinel)
}

func EncodeAck(bet model.Bet) []byte {
	buf := make([]byte, 0, AckSize)
	buf = binary.BigEndian.AppendUint32(buf, bet.Document)
	buf = binary.BigEndian.AppendUint32(buf, bet.Number)
	return append(buf, uint8(bet.Status))
}

func DecodeAck(data []byte) (Ack, error) {
	if len(data) != AckSize {
		return Ack{}, fmt.Errorf("%w: ack of %d bytes", ErrMalformedRecord, len(data))
	}
	return Ack{
		Document:   binary.BigEndian.Uint32(data[0:4]),
		Number:     binary.BigEndian.Uint32(data[4:8]),
		StatusCode: data[8],
	}, nil
}

// EncodeAcks builds the reply to one batch. The ack end sentinel is appended only when the
// batch held fewer records than capacity, which tells the client no more acks will follow.
func EncodeAcks(bets []model.Bet, capacity int) []byte {
	buf := make([]byte, 0, (len(bets)+1)*AckSize)
	for _, bet := range bets {
		buf = append(buf, EncodeAck(bet)...)
	}
	if len(bets) < capacity {
		buf = append(buf, ackEndSentinel...)
	}
	return buf
}

func EncodeWinnerDocument(document uint32) []byte {
	return binary.BigEndian.AppendUint32(make([]byte, 0, DocumentSize), document)
}

func DecodeWinnerDocument(data []byte) (uint32, error) {
	if len(data) != DocumentSize {
		return 0, fmt.Errorf("%w: document of %d bytes", ErrMalformedRecord, len(data))
	}
	return binary.BigEndian.Uint32(data), nil
}

// EncodeWinners serializes a winner list as count:2 followed by count documents.
// Lists longer than math.MaxUint16 fail with ErrTooManyWinners.
func EncodeWinners(winners []model.Bet) ([]byte, error) {
	if len(winners) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %d", ErrTooManyWinners, len(winners))
	}
	buf := make([]byte, 0, CountSize+len(winners)*DocumentSize)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(winners)))
	for _, w := range winners {
		buf = append(buf, EncodeWinnerDocument(w.Document)...)
	}
	return buf, nil
}

func DecodeWinners(data []byte) ([]uint32, error) {
	if len(data) < CountSize {
		return nil, fmt.Errorf("%w: winners header of %d bytes", ErrMalformedRecord, len(data))
	}
	count := int(binary.BigEndian.Uint16(data[:CountSize]))
	body := data[CountSize:]
	if len(body) != count*DocumentSize {
		return nil, fmt.Errorf("%w: expected %d documents, got %d bytes", ErrMalformedRecord, count, len(body))
	}
	docs := make([]uint32, 0, count)
	for i := 0; i < len(body); i += DocumentSize {
		doc, err := DecodeWinnerDocument(body[i : i+DocumentSize])
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
