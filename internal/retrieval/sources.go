package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/KhushM7/UncTube/internal/memory"
)

// SourcePolicy selects which context-pack assets become citations.
type SourcePolicy string

const (
	SourcesAll  SourcePolicy = "all"
	SourcesUsed SourcePolicy = "used"
)

// URLStyle selects how an asset key becomes a URL.
type URLStyle string

const (
	URLPublic    URLStyle = "public"
	URLPresigned URLStyle = "presigned"
)

// SelectSourceKeys returns the sorted unique asset keys to cite. Under SourcesUsed only
// units whose ids appear in usedIDs count, so an answer that reports none cites nothing.
func SelectSourceKeys(policy SourcePolicy, ranked []memory.RetrievedMemory, usedIDs []string) []string {
	var used map[string]struct{}
	if policy != SourcesAll {
		used = toSet(usedIDs...)
	}
	set := make(map[string]struct{})
	for _, rm := range ranked {
		if rm.AssetKey == "" {
			continue
		}
		if used != nil {
			if _, ok := used[rm.Unit.ID]; !ok {
				continue
			}
		}
		set[rm.AssetKey] = struct{}{}
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (e *Engine) sourceURLs(ctx context.Context, ranked []memory.RetrievedMemory, usedIDs []string) ([]string, error) {
	keys := SelectSourceKeys(e.cfg.SourcePolicy, ranked, usedIDs)
	urls := make([]string, 0, len(keys))
	for _, key := range keys {
		if e.cfg.URLStyle == URLPresigned {
			u, err := e.objects.PresignGet(ctx, key, e.cfg.PresignTTL)
			if err != nil {
				return nil, fmt.Errorf("presign source %s: %w", key, err)
			}
			urls = append(urls, u)
			continue
		}
		urls = append(urls, e.objects.PublicURL(key))
	}
	sort.Strings(urls)
	return urls, nil
}
