// Copyright (c) 2024 The libcoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package codec

import (
	"bytes"
	"testing"
)

func TestVarIntRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   uint64
	}{
		{"zero", 0},
		{"oneByteMax", 0xfc},
		{"twoByteMin", 0xfd},
		{"twoByteMax", 0xffff},
		{"fourByteMin", 0x10000},
		{"fourByteMax", 0xffffffff},
		{"eightByteMin", 0x100000000},
		{"eightByteMax", 0xffffffffffffffff},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteVarInt(&buf, test.in); err != nil {
				t.Fatalf("WriteVarInt: %v", err)
			}
			got, err := ReadVarInt(&buf)
			if err != nil {
				t.Fatalf("ReadVarInt: %v", err)
			}
			if got != test.in {
				t.Errorf("got %d, want %d", got, test.in)
			}
			if buf.Len() != 0 {
				t.Errorf("%d unread trailing bytes", buf.Len())
			}
		})
	}
}

func TestVarIntNonCanonical(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
	}{
		// 0xfd followed by a value that fits in one byte.
		{"twoByteLowValue", []byte{0xfd, 0x05, 0x00}},
		// 0xfe followed by a value that fits in two bytes.
		{"fourByteLowValue", []byte{0xfe, 0x05, 0x00, 0x00, 0x00}},
		// 0xff followed by a value that fits in four bytes.
		{"eightByteLowValue", []byte{0xff, 0x05, 0, 0, 0, 0, 0, 0, 0}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := ReadVarInt(bytes.NewReader(test.in))
			if err != ErrVarintOversize {
				t.Errorf("got %v, want ErrVarintOversize", err)
			}
		})
	}
}

func TestVarIntTruncated(t *testing.T) {
	tests := [][]byte{
		{},
		{0xfd},
		{0xfd, 0x01},
		{0xfe, 0x01, 0x02},
		{0xff, 0x01, 0x02, 0x03},
	}

	for _, in := range tests {
		_, err := ReadVarInt(bytes.NewReader(in))
		if err != ErrTruncated {
			t.Errorf("input %x: got %v, want ErrTruncated", in, err)
		}
	}
}

func TestVarStrRoundTrip(t *testing.T) {
	tests := []string{"", "a", "hello, wallet", string(make([]byte, 1000))}

	for _, in := range tests {
		var buf bytes.Buffer
		if err := WriteVarStr(&buf, in); err != nil {
			t.Fatalf("WriteVarStr: %v", err)
		}
		got, err := ReadVarStr(&buf, 1<<20)
		if err != nil {
			t.Fatalf("ReadVarStr: %v", err)
		}
		if got != in {
			t.Errorf("got %q, want %q", got, in)
		}
	}
}

func TestVarStrMaxLen(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteVarStr(&buf, "too long"); err != nil {
		t.Fatalf("WriteVarStr: %v", err)
	}
	if _, err := ReadVarStr(&buf, 3); err != ErrVarintOversize {
		t.Errorf("got %v, want ErrVarintOversize", err)
	}
}

func TestContainerRoundTrip(t *testing.T) {
	values := []uint64{1, 2, 3, 4, 5}

	var buf bytes.Buffer
	err := WriteContainer(&buf, len(values), func(i int) error {
		return WriteVarInt(&buf, values[i])
	})
	if err != nil {
		t.Fatalf("WriteContainer: %v", err)
	}

	got := make([]uint64, 0, len(values))
	_, err = ReadContainer(&buf, 1000, func(i int) error {
		v, err := ReadVarInt(&buf)
		if err != nil {
			return err
		}
		got = append(got, v)
		return nil
	})
	if err != nil {
		t.Fatalf("ReadContainer: %v", err)
	}
	if len(got) != len(values) {
		t.Fatalf("got %d elements, want %d", len(got), len(values))
	}
	for i := range values {
		if got[i] != values[i] {
			t.Errorf("element %d: got %d, want %d", i, got[i], values[i])
		}
	}
}

func TestContainerMaxCount(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteVarInt(&buf, 10); err != nil {
		t.Fatalf("WriteVarInt: %v", err)
	}
	_, err := ReadContainer(&buf, 5, func(i int) error { return nil })
	if err != ErrVarintOversize {
		t.Errorf("got %v, want ErrVarintOversize", err)
	}
}

func TestFixedWidthRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteUint32(&buf, 0xdeadbeef); err != nil {
		t.Fatalf("WriteUint32: %v", err)
	}
	if err := WriteInt64(&buf, -42); err != nil {
		t.Fatalf("WriteInt64: %v", err)
	}

	u32, err := ReadUint32(&buf)
	if err != nil {
		t.Fatalf("ReadUint32: %v", err)
	}
	if u32 != 0xdeadbeef {
		t.Errorf("got %x, want deadbeef", u32)
	}

	i64, err := ReadInt64(&buf)
	if err != nil {
		t.Fatalf("ReadInt64: %v", err)
	}
	if i64 != -42 {
		t.Errorf("got %d, want -42", i64)
	}
}
