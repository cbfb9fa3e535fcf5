package format

// DefaultChunkSize is the largest chunk sent as a single Telegram message.
// Telegram caps text messages at 4096 characters; 3000 leaves headroom
// for entities and keeps chunks readable.
const DefaultChunkSize = 3000

// ChunkRunes splits text into pieces of at most size runes each.
// Splits happen on rune boundaries so multi-byte characters are never torn.
// Empty input yields no chunks.
func ChunkRunes(text string, size int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = DefaultChunkSize
	}

	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
