// Package generator defines the Generator and Embedder capability contracts
// (spec.md §2/§9) and their provider-tagged implementations. Callers depend
// only on these two narrow interfaces; which concrete provider backs them
// is a deployment-time choice (config.Providers.{GeneratorProvider,
// EmbedderProvider} = oci|openai|bedrock|ollama).
package generator

import "context"

// Generator produces text, optionally following a JSON schema, and can
// stream deltas for the Synthesizer/DeepResearchAgent's progressive output.
type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
	GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error)
	Stream(ctx context.Context, system, user string, onDelta func(delta string)) (string, error)
}

// Embedder turns text (and, for image ingestion, a caption/OCR string) into
// a fixed-width vector used by SearchIndex's KNN path.
type Embedder interface {
	EmbedText(ctx context.Context, inputs []string) ([][]float32, error)
	Dimensions() int
}

// Captioner produces a short natural-language description of an image,
// used by the Extractor for image documents (spec.md §4.F).
type Captioner interface {
	Caption(ctx context.Context, imageBytes []byte, mimeType string) (caption string, source string, err error)
}
