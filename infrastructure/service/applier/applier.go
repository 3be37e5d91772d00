// Package applier holds the downstream actions run when an approval is granted.
package applier

import (
	"context"
	"fmt"

	"github.com/brandpilot/brandpilot/application/port/outbound"
)

// BriefApplier resolves an approved brief into the content to publish
type BriefApplier struct {
	briefs outbound.BriefRepository
}

func NewBriefApplier(briefs outbound.BriefRepository) *BriefApplier {
	return &BriefApplier{briefs: briefs}
}

func (a *BriefApplier) Apply(ctx context.Context, itemReference string) (*outbound.ApplyResult, error) {
	brief, err := a.briefs.FindByID(ctx, itemReference)
	if err != nil {
		return nil, err
	}
	return &outbound.ApplyResult{
		ItemReference: brief.ID,
		Target:        brief.Target,
		Content:       brief.Content,
		Message:       fmt.Sprintf("brief %q ready for %s", brief.Title, brief.Target),
	}, nil
}

// KeywordApplier moves an approved keyword into active monitoring
type KeywordApplier struct {
	keywords outbound.KeywordRepository
}

func NewKeywordApplier(keywords outbound.KeywordRepository) *KeywordApplier {
	return &KeywordApplier{keywords: keywords}
}

func (a *KeywordApplier) Apply(ctx context.Context, itemReference string) (*outbound.ApplyResult, error) {
	if err := a.keywords.MarkApproved(ctx, itemReference); err != nil {
		return nil, err
	}
	return &outbound.ApplyResult{
		ItemReference: itemReference,
		Message:       "keyword approved for tracking",
	}, nil
}
