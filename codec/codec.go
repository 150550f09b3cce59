// Package codec centralizes payload encoding for persisted artifacts.
//
// Codec selection is a breaking-change boundary: bytes written by one codec
// may not decode under another. Persisted formats therefore record the codec
// name in their manifest and select the codec by name on load.
package codec

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// Default is the codec used for newly written artifacts.
//
// Existing artifacts are self-describing (the manifest stores the codec
// name) and are opened by selecting the appropriate codec via ByName.
var Default Codec = Zstd{Inner: GoJSON{}}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	case "zstd+json":
		return Zstd{Inner: JSON{}}, true
	case "zstd+go-json":
		return Zstd{Inner: GoJSON{}}, true
	case "lz4+json":
		return LZ4{Inner: JSON{}}, true
	case "lz4+go-json":
		return LZ4{Inner: GoJSON{}}, true
	default:
		return nil, false
	}
}
