// Package chunker splits byte payloads into fixed-size, offset-addressed chunks.
package chunker

// DefaultChunkSize is the default chunk size for attachment uploads (1 MiB).
const DefaultChunkSize = 1 << 20

// Chunk is one contiguous slice of a payload.
type Chunk struct {
	Index  int
	Offset int64
	Length int
}

// Split returns the chunks covering size bytes. There are ceil(size/chunkSize)
// chunks with offsets 0, chunkSize, 2*chunkSize, ...; only the last may be short.
func Split(size int64, chunkSize int) []Chunk {
	if size <= 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	n := int((size + int64(chunkSize) - 1) / int64(chunkSize))
	chunks := make([]Chunk, 0, n)
	for i := 0; i < n; i++ {
		offset := int64(i) * int64(chunkSize)
		length := chunkSize
		if rest := size - offset; rest < int64(chunkSize) {
			length = int(rest)
		}
		chunks = append(chunks, Chunk{Index: i, Offset: offset, Length: length})
	}
	return chunks
}

// Bytes returns the part of data covered by c.
func (c Chunk) Bytes(data []byte) []byte {
	return data[c.Offset : c.Offset+int64(c.Length)]
}

// Each calls fn for every chunk of data in offset order and stops at the
// first error.
func Each(data []byte, chunkSize int, fn func(c Chunk, part []byte) error) error {
	for _, c := range Split(int64(len(data)), chunkSize) {
		if err := fn(c, c.Bytes(data)); err != nil {
			return err
		}
	}
	return nil
}
