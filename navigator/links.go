package navigator

import (
	"strconv"
	"strings"
)

// Link describes an anchor on the page as seen by the pagination
// heuristics.
type Link struct {
	Text      string `json:"text"`
	Class     string `json:"class"`
	AriaLabel string `json:"aria"`
	Disabled  bool   `json:"disabled"`
}

func (l Link) disabled() bool {
	return l.Disabled || strings.Contains(l.Class, "disabled")
}

func (l Link) isNext() bool {
	return strings.Contains(l.Text, "Next") ||
		strings.Contains(l.Text, "next") ||
		strings.Contains(l.Class, "next") ||
		strings.Contains(l.AriaLabel, "Next")
}

// ChooseAdvance picks the link to click to reach page current+1. A "next"
// control is tried first; when there is none, or the first one is
// disabled, a numeric link labelled current+1 is used instead.
func ChooseAdvance(links []Link, current int) (int, bool) {
	for i, l := range links {
		if !l.isNext() {
			continue
		}
		if !l.disabled() {
			return i, true
		}
		break
	}
	want := strconv.Itoa(current + 1)
	for i, l := range links {
		if strings.TrimSpace(l.Text) == want && !l.disabled() {
			return i, true
		}
	}
	return -1, false
}
