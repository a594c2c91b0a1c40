package field

// DefaultChunkSize bounds the number of fields sent per classification request.
// Batching keeps each call well inside the model's reliable attention window;
// a few small calls beat one giant one for recall on long forms.
const DefaultChunkSize = 25

// Plan partitions a filtered field list into contiguous chunks of at most
// maxChunkSize fields, preserving original order so page/section locality
// survives into each request. Deterministic: the same input and size always
// produce the same boundaries. The final chunk may be smaller.
func Plan(fields []Descriptor, maxChunkSize int) [][]Descriptor {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultChunkSize
	}
	var chunks [][]Descriptor
	for start := 0; start < len(fields); start += maxChunkSize {
		end := start + maxChunkSize
		if end > len(fields) {
			end = len(fields)
		}
		chunks = append(chunks, fields[start:end:end])
	}
	return chunks
}
