package generator

import (
	"strings"

	"github.com/yungbote/ragcore/internal/logger"
)

// Provider bundles the three capability interfaces a single backend
// satisfies together, so app wiring resolves one tag into one handle
// instead of three.
type Provider interface {
	Generator
	Embedder
	Captioner
}

// Resolve maps a provider tag (config.Providers.GeneratorProvider /
// EmbedderProvider) to a concrete Provider. "openai" is the only tag backed
// by a real client; oci/bedrock/ollama resolve to a named stub that fails
// with apperr.Unsupported the first time it is called (see DESIGN.md).
func Resolve(tag string, log *logger.Logger) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "openai", "":
		return NewOpenAI(log)
	case "oci", "bedrock", "ollama":
		log.Warn("generator provider not wired to a real SDK, using stub", "provider", tag)
		return NewUnsupported(tag), nil
	default:
		log.Warn("unknown generator provider, using stub", "provider", tag)
		return NewUnsupported(tag), nil
	}
}
