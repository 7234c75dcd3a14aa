package protocol

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// CBOR payloads use core deterministic encoding: the same delta always
// produces identical bytes.
var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("protocol: cbor encoder: " + err.Error())
	}
	cborDec, err = cbor.DecOptions{DefaultMapType: reflect.TypeOf(map[string]any(nil))}.DecMode()
	if err != nil {
		panic("protocol: cbor decoder: " + err.Error())
	}
}

// NormalizeEncoding maps a HELLO encoding capability onto a supported one.
func NormalizeEncoding(enc string) (string, error) {
	switch enc {
	case "", EncodingJSON:
		return EncodingJSON, nil
	case EncodingCBOR:
		return EncodingCBOR, nil
	default:
		return "", fmt.Errorf("unsupported encoding %q", enc)
	}
}

// Marshal encodes a server message in the given encoding.
func Marshal(enc string, v any) ([]byte, error) {
	if enc == EncodingCBOR {
		return cborEnc.Marshal(v)
	}
	return json.Marshal(v)
}

func Unmarshal(enc string, data []byte, v any) error {
	if enc == EncodingCBOR {
		return cborDec.Unmarshal(data, v)
	}
	return json.Unmarshal(data, v)
}

// IsBinary reports whether enc travels in binary websocket frames.
func IsBinary(enc string) bool { return enc == EncodingCBOR }
