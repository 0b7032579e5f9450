package system

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58/base58"
)

// NativeLoaderKey owns natively executed programs.
var NativeLoaderKey ed25519.PublicKey

func init() {
	var err error

	NativeLoaderKey, err = base58.Decode("NativeLoader1111111111111111111111111111111")
	if err != nil {
		panic(err)
	}
}
