package llm

import "fmt"

// Provider identifies a chat model backend.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
)

// AllProviders lists every provider the gateway knows how to drive.
var AllProviders = []Provider{ProviderOpenAI, ProviderAnthropic, ProviderGemini}

func ParseProvider(s string) (Provider, error) {
	switch Provider(s) {
	case ProviderOpenAI, ProviderAnthropic, ProviderGemini:
		return Provider(s), nil
	}
	return "", fmt.Errorf("unknown provider %q", s)
}

func (p Provider) DisplayName() string {
	switch p {
	case ProviderOpenAI:
		return "OpenAI"
	case ProviderAnthropic:
		return "Anthropic"
	case ProviderGemini:
		return "Gemini"
	default:
		return string(p)
	}
}
