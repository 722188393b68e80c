package protocol

import (
	"errors"
	"fmt"
	"io"

	"lottery/database/model"
)

// ReadFull reads exactly n bytes. A peer that closes before n bytes arrive yields
// ErrConnectionTerminatedEarly; any other read error is returned wrapped.
func ReadFull(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	read := 0
	for read < n {
		m, err := r.Read(buf[read:])
		read += m
		if read == n {
			break
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return buf[:read], fmt.Errorf("%w: read %d of %d bytes", ErrConnectionTerminatedEarly, read, n)
			}
			return buf[:read], fmt.Errorf("read: %w", err)
		}
		if m == 0 {
			return buf[:read], fmt.Errorf("%w: empty read", ErrConnectionTerminatedEarly)
		}
	}
	return buf, nil
}

// ReadBatch accumulates one batch of at most capacity bytes. It stops early when the data
// read so far is a whole number of packets whose last packet is the end sentinel; ended
// reports whether that happened.
func ReadBatch(r io.Reader, capacity int) (data []byte, ended bool, err error) {
	data = make([]byte, 0, capacity)
	buf := make([]byte, capacity)
	for len(data) < capacity {
		n, rerr := r.Read(buf[:capacity-len(data)])
		data = append(data, buf[:n]...)
		if endsWithSentinel(data) {
			return data, true, nil
		}
		if len(data) == capacity {
			break
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return data, false, fmt.Errorf("%w: %d bytes into batch", ErrConnectionTerminatedEarly, len(data))
			}
			return data, false, fmt.Errorf("read batch: %w", rerr)
		}
		if n == 0 {
			return data, false, fmt.Errorf("%w: empty read", ErrConnectionTerminatedEarly)
		}
	}
	return data, false, nil
}

func endsWithSentinel(data []byte) bool {
	return len(data) >= PacketSize && len(data)%PacketSize == 0 && IsEndSentinel(data[len(data)-PacketSize:])
}

// SplitBatch decodes every packet in data up to, and excluding, the end sentinel. Nothing is
// returned unless the whole batch decodes.
func SplitBatch(data []byte) ([]model.Bet, error) {
	if len(data)%PacketSize != 0 {
		return nil, fmt.Errorf("%w: batch of %d bytes is not a whole number of packets", ErrMalformedRecord, len(data))
	}
	bets := make([]model.Bet, 0, len(data)/PacketSize)
	for i := 0; i < len(data); i += PacketSize {
		chunk := data[i : i+PacketSize]
		if IsEndSentinel(chunk) {
			break
		}
		bet, err := DecodeBet(chunk)
		if err != nil {
			return nil, fmt.Errorf("packet %d: %w", i/PacketSize, err)
		}
		bets = append(bets, bet)
	}
	return bets, nil
}

// WriteAll writes data completely, looping over short writes.
func WriteAll(w io.Writer, data []byte) error {
	sent := 0
	for sent < len(data) {
		n, err := w.Write(data[sent:])
		if err != nil {
			return fmt.Errorf("write: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: zero-byte write", ErrConnectionTerminatedEarly)
		}
		sent += n
	}
	return nil
}
