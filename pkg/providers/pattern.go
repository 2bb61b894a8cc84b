package providers

import (
	"context"
	"regexp"

	"github.com/stasisproject/stasis/pkg/capsule"
)

// PatternProvider captures compiled regular expressions by their
// pattern text and recompiles on rebuild.
type PatternProvider struct{}

// NewPatternProvider returns the regexp provider.
func NewPatternProvider() *PatternProvider {
	return &PatternProvider{}
}

func (p *PatternProvider) Name() string  { return "regexp.pattern" }
func (p *PatternProvider) Priority() int { return 100 }

func (p *PatternProvider) Match(v any) bool {
	_, ok := v.(*regexp.Regexp)
	return ok
}

func (p *PatternProvider) Extract(ctx context.Context, v any, opts *capsule.Options) (*capsule.StateBundle, error) {
	re := v.(*regexp.Regexp)
	return capsule.NewBundle().Set("pattern", re.String()), nil
}

func (p *PatternProvider) Rebuild(ctx context.Context, b *capsule.StateBundle) (any, error) {
	pattern, err := b.MustString("pattern")
	if err != nil {
		return nil, err
	}
	return regexp.Compile(pattern)
}
