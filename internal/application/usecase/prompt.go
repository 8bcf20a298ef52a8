package usecase

import (
	"math/rand/v2"
	"strings"

	"github.com/bnema/ealain/internal/domain/entity"
)

// RequestTemplate produces generation requests for a partition.
// Prompt placeholders {style} and {colors} are filled from Styles and Palettes.
type RequestTemplate struct {
	Prompt          string
	NegativePrompts []string
	Styles          []string
	Palettes        []string
	Models          []string
	Count           int
	LongEdge        int
	ShortEdge       int
	Params          entity.GenerationParams

	NSFW              bool
	CensorNSFW        bool
	TrustedWorkers    bool
	SlowWorkers       bool
	Shared            bool
	R2                bool
	ReplacementFilter bool
}

// RequestBuilder turns the template into concrete requests.
type RequestBuilder struct {
	template RequestTemplate
	randIntN func(n int) int
}

// NewRequestBuilder creates a builder with a random source.
func NewRequestBuilder(t RequestTemplate) *RequestBuilder {
	return &RequestBuilder{template: t, randIntN: rand.IntN}
}

// Build returns a request sized for the partition orientation.
// A partition style overrides the configured models.
func (b *RequestBuilder) Build(p entity.Partition) entity.GenerationRequest {
	t := b.template
	width, height := p.Orientation.Dimensions(t.LongEdge, t.ShortEdge)

	return entity.GenerationRequest{
		Prompt:            b.prompt(),
		Style:             p.Style,
		Models:            append([]string(nil), t.Models...),
		Count:             t.Count,
		Width:             width,
		Height:            height,
		Params:            t.Params,
		NSFW:              t.NSFW,
		CensorNSFW:        t.CensorNSFW,
		TrustedWorkers:    t.TrustedWorkers,
		SlowWorkers:       t.SlowWorkers,
		Shared:            t.Shared,
		R2:                t.R2,
		ReplacementFilter: t.ReplacementFilter,
	}
}

func (b *RequestBuilder) prompt() string {
	t := b.template
	prompt := strings.NewReplacer(
		"{style}", b.pick(t.Styles),
		"{colors}", b.pick(t.Palettes),
	).Replace(t.Prompt)
	prompt = strings.Join(strings.Fields(prompt), " ")

	if negative := b.pick(t.NegativePrompts); negative != "" {
		prompt += " ### " + negative
	}
	return prompt
}

func (b *RequestBuilder) pick(options []string) string {
	if len(options) == 0 {
		return ""
	}
	return options[b.randIntN(len(options))]
}
