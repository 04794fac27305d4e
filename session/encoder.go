package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const recordFormatVersion = 1

// ErrRecordCorrupt is returned when a stored blob cannot be decoded.
var ErrRecordCorrupt = errors.New("refresh record corrupt")

// Encode serializes r as: version, len(userID), userID, token hash, createdAt,
// expiresAt. The jti is not encoded; it is part of the Redis key.
func Encode(r *Record) ([]byte, error) {
	if len(r.UserID) == 0 || len(r.UserID) > 255 {
		return nil, errors.New("userID length out of range")
	}

	var buf bytes.Buffer
	buf.Grow(1 + 1 + len(r.UserID) + 32 + 16)

	buf.WriteByte(recordFormatVersion)
	buf.WriteByte(byte(len(r.UserID)))
	buf.WriteString(r.UserID)
	buf.Write(r.TokenHash[:])

	if err := binary.Write(&buf, binary.BigEndian, r.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, r.ExpiresAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a blob written by Encode.
func Decode(data []byte) (*Record, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, ErrRecordCorrupt
	}
	if version != recordFormatVersion {
		return nil, ErrRecordCorrupt
	}

	userLen, err := reader.ReadByte()
	if err != nil || userLen == 0 {
		return nil, ErrRecordCorrupt
	}
	userID := make([]byte, userLen)
	if _, err := io.ReadFull(reader, userID); err != nil {
		return nil, ErrRecordCorrupt
	}

	r := &Record{UserID: string(userID)}
	if _, err := io.ReadFull(reader, r.TokenHash[:]); err != nil {
		return nil, ErrRecordCorrupt
	}
	if err := binary.Read(reader, binary.BigEndian, &r.CreatedAt); err != nil {
		return nil, ErrRecordCorrupt
	}
	if err := binary.Read(reader, binary.BigEndian, &r.ExpiresAt); err != nil {
		return nil, ErrRecordCorrupt
	}
	if reader.Len() != 0 {
		return nil, ErrRecordCorrupt
	}

	return r, nil
}
