package navigator

import (
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// configAliases maps the plural names accepted in configuration to the
// CDP resource types they cover.
var configAliases = map[string]proto.NetworkResourceType{
	"images":      proto.NetworkResourceTypeImage,
	"fonts":       proto.NetworkResourceTypeFont,
	"media":       proto.NetworkResourceTypeMedia,
	"stylesheets": proto.NetworkResourceTypeStylesheet,
}

// resourceFilter is the set of lower-cased CDP resource types to refuse.
type resourceFilter map[string]struct{}

func newResourceFilter(names []string) resourceFilter {
	f := make(resourceFilter, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		if rt, ok := configAliases[n]; ok {
			n = strings.ToLower(string(rt))
		}
		f[n] = struct{}{}
	}
	return f
}

func (f resourceFilter) blocks(resType string) bool {
	_, ok := f[strings.ToLower(resType)]
	return ok
}

// applyResourceBlocking fails matching requests on page. Rate tables are
// plain markup, so images, fonts and the like never matter. The returned
// router must be stopped by the caller.
func applyResourceBlocking(page *rod.Page, names []string) *rod.HijackRouter {
	filter := newResourceFilter(names)
	router := page.HijackRequests()
	router.MustAdd("*", func(h *rod.Hijack) {
		if filter.blocks(string(h.Request.Type())) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
	return router
}
