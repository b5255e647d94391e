package corpus

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/JakeFAU/topic-corpus/internal/crawler"
	"github.com/JakeFAU/topic-corpus/internal/hash/sha256"
)

// ContentType is the media type of an encoded corpus.
const ContentType = "application/json"

// Encode renders docs as an indented JSON array. A nil slice encodes as [].
func Encode(docs []crawler.Document) ([]byte, error) {
	if docs == nil {
		docs = []crawler.Document{}
	}
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode corpus: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses a corpus artifact.
func Decode(data []byte) ([]crawler.Document, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("decode corpus: empty artifact")
	}
	var docs []crawler.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("decode corpus: %w", err)
	}
	return docs, nil
}

// Checksum returns the SHA-256 of the encoded form of docs.
func Checksum(docs []crawler.Document) (string, error) {
	data, err := Encode(docs)
	if err != nil {
		return "", err
	}
	return sha256.New().Hash(data)
}
