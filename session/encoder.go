package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const formatVersionCurrent = 1

// tailSize is the byte length of the fixed-offset mutable tail:
// csrfSecret(32) + createdAt(8) + deadlineAt(8) + lastSeenAt(8).
const tailSize = 56

// Encode serializes a [Session] into its binary blob form. The session
// identifier is the Redis key and is not part of the blob.
func Encode(s *Session) ([]byte, error) {
	if len(s.UserID) > 255 {
		return nil, errors.New("userID too long")
	}

	var buf bytes.Buffer
	buf.Grow(2 + len(s.UserID) + tailSize)

	buf.WriteByte(formatVersionCurrent)
	buf.WriteByte(byte(len(s.UserID)))
	buf.WriteString(s.UserID)
	buf.Write(s.CSRFSecret[:])

	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.DeadlineAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.LastSeenAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a binary session blob. SessionID is left empty for the
// caller to fill from the key it was loaded under.
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != formatVersionCurrent {
		return nil, errors.New("invalid session version")
	}

	userLen, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if len(data) != 2+int(userLen)+tailSize {
		return nil, errors.New("invalid session length")
	}

	s := &Session{}

	userID := make([]byte, userLen)
	if _, err := io.ReadFull(reader, userID); err != nil {
		return nil, err
	}
	s.UserID = string(userID)

	if _, err := io.ReadFull(reader, s.CSRFSecret[:]); err != nil {
		return nil, err
	}

	if err := binary.Read(reader, binary.BigEndian, &s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &s.DeadlineAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &s.LastSeenAt); err != nil {
		return nil, err
	}

	return s, nil
}
