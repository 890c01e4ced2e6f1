// Package output serializes the dataset and hands it to a BlobStore.
package output

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/courthouse-harvester/internal/harvest"
)

const contentType = "application/json"

// Artifact describes a written dataset.
type Artifact struct {
	URI     string
	SHA256  string
	Size    int
	Records int
}

// Writer encodes datasets and stores them.
type Writer struct {
	store  harvest.BlobStore
	hasher harvest.Hasher
	logger *zap.Logger
}

// New constructs a Writer.
func New(store harvest.BlobStore, hasher harvest.Hasher, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{store: store, hasher: hasher, logger: logger}
}

// Write stores dataset at path. An empty dataset is still written as [].
func (w *Writer) Write(ctx context.Context, path string, dataset harvest.Dataset) (Artifact, error) {
	data, err := Encode(dataset)
	if err != nil {
		return Artifact{}, err
	}
	sum, err := w.hasher.Hash(data)
	if err != nil {
		return Artifact{}, fmt.Errorf("hash artifact: %w", err)
	}
	uri, err := w.store.PutObject(ctx, path, contentType, bytes.NewReader(data))
	if err != nil {
		return Artifact{}, fmt.Errorf("store artifact %s: %w", path, err)
	}

	artifact := Artifact{URI: uri, SHA256: sum, Size: len(data), Records: dataset.Len()}
	w.logger.Info("artifact written",
		zap.String("uri", uri),
		zap.String("sha256", sum),
		zap.Int("bytes", artifact.Size),
		zap.Int("records", artifact.Records),
	)
	return artifact, nil
}

// Encode renders the dataset as a two-space indented JSON array without
// HTML escaping.
func Encode(dataset harvest.Dataset) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(dataset); err != nil {
		return nil, fmt.Errorf("encode dataset: %w", err)
	}
	return buf.Bytes(), nil
}
