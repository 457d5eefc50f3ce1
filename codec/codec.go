// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2024 The libcoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package codec implements the little-endian, varint-prefixed wire
// encoding used throughout the wallet's on-disk records. It mirrors
// the primitives of include/coin/Serialization.h: fixed-width
// little-endian binary, space-optimized varints, length-prefixed
// varstrs, and varint-prefixed containers.
package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

// Errors returned by Decode and the Read* helpers.
var (
	// ErrTruncated is returned when the input ends before a value
	// of the expected width could be read.
	ErrTruncated = errors.New("codec: truncated input")

	// ErrVarintOversize is returned when a varint's tag byte
	// promises a width wider than necessary to hold its value,
	// or when a decoded container length is absurd relative to
	// the remaining input.
	ErrVarintOversize = errors.New("codec: non-canonical or oversized varint")
)

// Varint tag bytes. A value below tagUint16 is encoded as itself.
const (
	tagUint16 = 0xfd
	tagUint32 = 0xfe
	tagUint64 = 0xff
)

// WriteVarInt writes n as a space-optimized size tag: a single byte
// if n < 0xfd, else a tag byte followed by the narrowest of u16/u32/u64
// that holds n, little-endian.
func WriteVarInt(w io.Writer, n uint64) error {
	switch {
	case n < tagUint16:
		_, err := w.Write([]byte{byte(n)})
		return err
	case n <= 0xffff:
		buf := make([]byte, 3)
		buf[0] = tagUint16
		binary.LittleEndian.PutUint16(buf[1:], uint16(n))
		_, err := w.Write(buf)
		return err
	case n <= 0xffffffff:
		buf := make([]byte, 5)
		buf[0] = tagUint32
		binary.LittleEndian.PutUint32(buf[1:], uint32(n))
		_, err := w.Write(buf)
		return err
	default:
		buf := make([]byte, 9)
		buf[0] = tagUint64
		binary.LittleEndian.PutUint64(buf[1:], n)
		_, err := w.Write(buf)
		return err
	}
}

// ReadVarInt reads a value written by WriteVarInt. A tag byte that
// selects a wider encoding than the value requires (e.g. 0xfd encoding
// a value below 0xfd) is rejected as non-canonical.
func ReadVarInt(r io.Reader) (uint64, error) {
	var tag [1]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return 0, ErrTruncated
	}

	switch tag[0] {
	case tagUint16:
		var buf [2]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, ErrTruncated
		}
		v := uint64(binary.LittleEndian.Uint16(buf[:]))
		if v < tagUint16 {
			return 0, ErrVarintOversize
		}
		return v, nil
	case tagUint32:
		var buf [4]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, ErrTruncated
		}
		v := uint64(binary.LittleEndian.Uint32(buf[:]))
		if v <= 0xffff {
			return 0, ErrVarintOversize
		}
		return v, nil
	case tagUint64:
		var buf [8]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, ErrTruncated
		}
		v := binary.LittleEndian.Uint64(buf[:])
		if v <= 0xffffffff {
			return 0, ErrVarintOversize
		}
		return v, nil
	default:
		return uint64(tag[0]), nil
	}
}

// WriteVarStr writes a varint length prefix followed by s's bytes.
func WriteVarStr(w io.Writer, s string) error {
	if err := WriteVarInt(w, uint64(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

// ReadVarStr reads a value written by WriteVarStr. maxLen bounds the
// declared length against something the remaining stream could
// plausibly hold, guarding against a corrupt size tag requesting a
// multi-gigabyte allocation.
func ReadVarStr(r io.Reader, maxLen uint64) (string, error) {
	n, err := ReadVarInt(r)
	if err != nil {
		return "", err
	}
	if n > maxLen {
		return "", ErrVarintOversize
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", ErrTruncated
	}
	return string(buf), nil
}

// WriteVarBytes writes a varint length prefix followed by b.
func WriteVarBytes(w io.Writer, b []byte) error {
	if err := WriteVarInt(w, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// ReadVarBytes reads a value written by WriteVarBytes.
func ReadVarBytes(r io.Reader, maxLen uint64) ([]byte, error) {
	n, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if n > maxLen {
		return nil, ErrVarintOversize
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, ErrTruncated
	}
	return buf, nil
}

// WriteContainer writes a varint count followed by calling write once
// per element, in order. Maps should be flattened to key, value, key,
// value... pairs by the caller before invoking WriteContainer with
// count equal to the number of pairs written by each call to write.
func WriteContainer(w io.Writer, count int, write func(i int) error) error {
	if err := WriteVarInt(w, uint64(count)); err != nil {
		return err
	}
	for i := 0; i < count; i++ {
		if err := write(i); err != nil {
			return err
		}
	}
	return nil
}

// ReadContainer reads a varint count, then calls read once per
// element. maxCount guards against a corrupt count causing an
// unbounded loop.
func ReadContainer(r io.Reader, maxCount uint64, read func(i int) error) (int, error) {
	n, err := ReadVarInt(r)
	if err != nil {
		return 0, err
	}
	if n > maxCount {
		return 0, ErrVarintOversize
	}
	for i := uint64(0); i < n; i++ {
		if err := read(int(i)); err != nil {
			return int(i), err
		}
	}
	return int(n), nil
}

// WriteUint32 and the other fixed-width helpers below serialize basic
// types by their little-endian memory representation, the const_binary
// / binary<T> counterpart of include/coin/Serialization.h.

func WriteUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func ReadUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, ErrTruncated
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func WriteUint64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func ReadUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, ErrTruncated
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func WriteInt64(w io.Writer, v int64) error {
	return WriteUint64(w, uint64(v))
}

func ReadInt64(r io.Reader) (int64, error) {
	v, err := ReadUint64(r)
	return int64(v), err
}

// Bytes is a convenience wrapper that runs write against a fresh
// bytes.Buffer and returns its contents.
func Bytes(write func(w io.Writer) error) ([]byte, error) {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
