package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Zstd wraps an inner codec with zstd compression.
//
// Document ledgers compress well (text plus repetitive JSON structure);
// zstd at the default level typically shrinks them 3-5x.
type Zstd struct {
	Inner Codec
}

// Marshal encodes via the inner codec and compresses the result.
func (c Zstd) Marshal(v any) ([]byte, error) {
	raw, err := c.Inner.Marshal(v)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("zstd writer: %w", err)
	}
	if _, err := zw.Write(raw); err != nil {
		_ = zw.Close()
		return nil, fmt.Errorf("zstd compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zstd flush: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal decompresses data and decodes via the inner codec.
func (c Zstd) Unmarshal(data []byte, v any) error {
	zr, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("zstd reader: %w", err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return fmt.Errorf("zstd decompress: %w", err)
	}
	return c.Inner.Unmarshal(raw, v)
}

// Name returns "zstd+<inner>".
func (c Zstd) Name() string { return "zstd+" + c.Inner.Name() }

// LZ4 wraps an inner codec with LZ4 frame compression.
//
// LZ4 trades compression ratio for speed; it suits the index blob, which is
// mostly high-entropy float data where heavier compression buys little.
type LZ4 struct {
	Inner Codec
}

// Marshal encodes via the inner codec and compresses the result.
func (c LZ4) Marshal(v any) ([]byte, error) {
	raw, err := c.Inner.Marshal(v)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	lw := lz4.NewWriter(&buf)
	if _, err := lw.Write(raw); err != nil {
		_ = lw.Close()
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	if err := lw.Close(); err != nil {
		return nil, fmt.Errorf("lz4 flush: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal decompresses data and decodes via the inner codec.
func (c LZ4) Unmarshal(data []byte, v any) error {
	lr := lz4.NewReader(bytes.NewReader(data))
	raw, err := io.ReadAll(lr)
	if err != nil {
		return fmt.Errorf("lz4 decompress: %w", err)
	}
	return c.Inner.Unmarshal(raw, v)
}

// Name returns "lz4+<inner>".
func (c LZ4) Name() string { return "lz4+" + c.Inner.Name() }

// CompressFrame compresses a raw byte blob with an LZ4 frame.
// Used for opaque artifacts (e.g. the serialized vector index) that do not
// pass through a structured codec.
func CompressFrame(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	lw := lz4.NewWriter(&buf)
	if _, err := lw.Write(raw); err != nil {
		_ = lw.Close()
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	if err := lw.Close(); err != nil {
		return nil, fmt.Errorf("lz4 flush: %w", err)
	}
	return buf.Bytes(), nil
}

// DecompressFrame reverses CompressFrame.
func DecompressFrame(data []byte) ([]byte, error) {
	lr := lz4.NewReader(bytes.NewReader(data))
	raw, err := io.ReadAll(lr)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	return raw, nil
}
