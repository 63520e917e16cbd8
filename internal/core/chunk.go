package core

// ChunkDocuments splits a list of documents into chunks of at most chunkSize,
// preserving order. Used to keep per-request prompt sizes bounded when
// summarizing search results.
func ChunkDocuments(docs []string, chunkSize int) [][]string {
	if chunkSize <= 0 {
		return [][]string{docs}
	}
	var chunks [][]string
	for i := 0; i < len(docs); i += chunkSize {
		end := i + chunkSize
		if end > len(docs) {
			end = len(docs)
		}
		chunks = append(chunks, docs[i:end])
	}
	return chunks
}
