package refresh

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

// Binary record layout, version 1. Fixed-width fields come first so the
// store's Lua scripts can read state, expiry, and the principal id at fixed
// offsets without decoding the variable tail.
//
//	offset  width  field
//	0       1      format version
//	1       1      state
//	2       4      security version (uint32 BE)
//	6       8      issued-at unix seconds (int64 BE)
//	14      8      expires-at unix seconds (int64 BE)
//	22      16     record id
//	38      16     successor id (zero until rotated)
//	54      ...    principal, device, address (u8 length-prefixed)
//	...     ...    role count (u8), then u8 length-prefixed roles
const recordFormatVersionCurrent = 1

const maxRoles = 32

func Encode(r *Record) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(recordFormatVersionCurrent)
	buf.WriteByte(byte(r.State))

	if err := binary.Write(&buf, binary.BigEndian, r.SecurityVersion); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, r.IssuedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, r.ExpiresAt); err != nil {
		return nil, err
	}

	buf.Write(r.ID[:])
	buf.Write(r.Successor[:])

	if len(r.PrincipalID) == 0 || len(r.PrincipalID) > 255 {
		return nil, errors.New("invalid principal id length")
	}
	buf.WriteByte(byte(len(r.PrincipalID)))
	buf.WriteString(r.PrincipalID)

	if len(r.Device) > 255 {
		return nil, errors.New("device too long")
	}
	buf.WriteByte(byte(len(r.Device)))
	buf.WriteString(r.Device)

	if len(r.Address) > 255 {
		return nil, errors.New("address too long")
	}
	buf.WriteByte(byte(len(r.Address)))
	buf.WriteString(r.Address)

	if len(r.Roles) > maxRoles {
		return nil, errors.New("too many roles")
	}
	buf.WriteByte(byte(len(r.Roles)))
	for _, role := range r.Roles {
		if len(role) == 0 || len(role) > 255 {
			return nil, errors.New("invalid role length")
		}
		buf.WriteByte(byte(len(role)))
		buf.WriteString(role)
	}

	return buf.Bytes(), nil
}

func Decode(data []byte) (*Record, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != recordFormatVersionCurrent {
		return nil, errors.New("invalid record version")
	}

	r := &Record{}

	state, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if state > byte(StateRevoked) {
		return nil, errors.New("invalid record state")
	}
	r.State = State(state)

	if err := binary.Read(reader, binary.BigEndian, &r.SecurityVersion); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &r.IssuedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &r.ExpiresAt); err != nil {
		return nil, err
	}

	if _, err := io.ReadFull(reader, r.ID[:]); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(reader, r.Successor[:]); err != nil {
		return nil, err
	}

	principal, err := readLenPrefixed(reader)
	if err != nil {
		return nil, err
	}
	if len(principal) == 0 {
		return nil, errors.New("empty principal id")
	}
	r.PrincipalID = string(principal)

	device, err := readLenPrefixed(reader)
	if err != nil {
		return nil, err
	}
	r.Device = string(device)

	address, err := readLenPrefixed(reader)
	if err != nil {
		return nil, err
	}
	r.Address = string(address)

	roleCount, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if roleCount > maxRoles {
		return nil, errors.New("too many roles")
	}
	if roleCount > 0 {
		r.Roles = make([]string, 0, roleCount)
		for i := 0; i < int(roleCount); i++ {
			role, err := readLenPrefixed(reader)
			if err != nil {
				return nil, err
			}
			if len(role) == 0 {
				return nil, errors.New("empty role")
			}
			r.Roles = append(r.Roles, string(role))
		}
	}

	if reader.Len() != 0 {
		return nil, errors.New("trailing bytes in record")
	}

	return r, nil
}

func readLenPrefixed(reader *bytes.Reader) ([]byte, error) {
	length, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if length == 0 {
		return nil, nil
	}

	value := make([]byte, length)
	if _, err := io.ReadFull(reader, value); err != nil {
		return nil, err
	}
	return value, nil
}
