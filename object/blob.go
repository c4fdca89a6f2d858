package object

// Blob is raw file content. It has no internal structure: the payload
// bytes are the object, verbatim.
type Blob struct {
	Data []byte
}

// ParseBlob wraps payload as a Blob. It cannot fail; it exists for symmetry
// with ParseCommit/ParseTree/ParseTag.
func ParseBlob(payload []byte) Blob {
	return Blob{Data: payload}
}

// SerializeBlob returns a blob's payload bytes.
func SerializeBlob(b Blob) []byte {
	return b.Data
}
