// Copyright (c) 2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package zero implements range-based zeroing of sensitive memory.
package zero

import "math/big"

// Bytes sets every byte in the passed slice to zero. This is used to
// explicitly clear private key material from memory once it is no
// longer needed.
func Bytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// BigInt sets all bytes in the passed big.Int to zero and then sets
// its value to 0. This differs from simply setting the value to zero
// in that it specifically clears the underlying bytes, whereas
// setting the value alone does not. This is useful for forcibly
// clearing a private key.
func BigInt(x *big.Int) {
	b := x.Bits()
	for i := range b {
		b[i] = 0
	}
	x.SetInt64(0)
}
