package snapshot

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
)

// Codec serialises one artifact payload. The codec id is stored in every
// artifact header so a snapshot can be read regardless of which codec is
// currently configured.
type Codec interface {
	ID() uint8
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

const (
	codecJSON uint8 = 1
	codecCBOR uint8 = 2
)

type jsonCodec struct{}

func (jsonCodec) ID() uint8 { return codecJSON }
func (jsonCodec) Name() string { return "json" }
func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// cborEncMode uses Core Deterministic Encoding (sorted map keys, smallest
// integer encoding) so the same State always produces identical bytes.
var (
	cborEncMode cbor.EncMode
	cborDecMode cbor.DecMode
)

func init() {
	var err error
	cborEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("snapshot: CBOR encoder initialization failed: " + err.Error())
	}
	cborDecMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("snapshot: CBOR decoder initialization failed: " + err.Error())
	}
}

type cborCodec struct{}

func (cborCodec) ID() uint8 { return codecCBOR }
func (cborCodec) Name() string { return "cbor" }
func (cborCodec) Marshal(v any) ([]byte, error) { return cborEncMode.Marshal(v) }
func (cborCodec) Unmarshal(data []byte, v any) error { return cborDecMode.Unmarshal(data, v) }

var (
	JSON Codec = jsonCodec{}
	CBOR Codec = cborCodec{}
)

// CodecByName resolves a configured codec name.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", JSON.Name():
		return JSON, nil
	case CBOR.Name():
		return CBOR, nil
	default:
		return nil, fmt.Errorf("unknown snapshot codec %q", name)
	}
}

func codecByID(id uint8) (Codec, error) {
	switch id {
	case codecJSON:
		return JSON, nil
	case codecCBOR:
		return CBOR, nil
	default:
		return nil, fmt.Errorf("unknown codec id %d", id)
	}
}

// zstdEncoder and zstdDecoder are shared; both are safe for concurrent use
// through EncodeAll and DecodeAll.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("snapshot: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("snapshot: zstd decoder initialization failed: " + err.Error())
	}
}

func compress(data []byte) []byte {
	return zstdEncoder.EncodeAll(data, make([]byte, 0, len(data)/2))
}

func decompress(data []byte) ([]byte, error) {
	out, err := zstdDecoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return out, nil
}
