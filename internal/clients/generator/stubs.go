package generator

import (
	"context"

	"github.com/yungbote/ragcore/internal/apperr"
)

// unsupportedProvider backs the oci/bedrock/ollama tags named in spec.md §9
// but not wired to a real SDK in this module (no real Go SDK for OCI's
// generative-AI service or a Bedrock-compatible client appears anywhere in
// the retrieved pack). Rather than fabricate one, NewUnsupported() returns this stub so
// selecting the tag fails loudly with apperr.Unsupported instead of silently
// behaving like OpenAI.
type unsupportedProvider struct {
	name string
}

func (u *unsupportedProvider) Generate(ctx context.Context, system, user string) (string, error) {
	return "", apperr.Unsupported("generator provider %q is not wired in this build", u.name)
}

func (u *unsupportedProvider) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	return nil, apperr.Unsupported("generator provider %q is not wired in this build", u.name)
}

func (u *unsupportedProvider) Stream(ctx context.Context, system, user string, onDelta func(string)) (string, error) {
	return "", apperr.Unsupported("generator provider %q is not wired in this build", u.name)
}

func (u *unsupportedProvider) EmbedText(ctx context.Context, inputs []string) ([][]float32, error) {
	return nil, apperr.Unsupported("embedder provider %q is not wired in this build", u.name)
}

func (u *unsupportedProvider) Dimensions() int { return 0 }

func (u *unsupportedProvider) Caption(ctx context.Context, imageBytes []byte, mimeType string) (string, string, error) {
	return "", "", apperr.Unsupported("captioner provider %q is not wired in this build", u.name)
}

func NewUnsupported(name string) *unsupportedProvider {
	return &unsupportedProvider{name: name}
}
