package navigator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/icmsnap/icms"
)

// Config configures a browser session.
type Config struct {
	// RemoteURL is the DevTools WebSocket URL of an external Chrome.
	// Empty = launch a local Chrome.
	RemoteURL string

	// Headful shows the browser window. Default: headless.
	Headful bool

	// ResourceBlocking lists resource types to block (images, fonts, media, stylesheets).
	ResourceBlocking []string

	Waits  Waits
	Logger *slog.Logger
}

func (c *Config) defaults() {
	c.Waits.defaults()
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// RodSession is a Session backed by one Chrome instance and one tab.
type RodSession struct {
	cfg     Config
	browser *rod.Browser
	lnch    *launcher.Launcher
	page    *rod.Page
	router  *rod.HijackRouter

	closeOnce sync.Once
	closeErr  error
}

// Open launches Chrome (or connects to a remote instance). The returned
// session must be closed by the caller on every path.
func Open(ctx context.Context, cfg Config) (*RodSession, error) {
	cfg.defaults()
	log := cfg.Logger
	s := &RodSession{cfg: cfg}

	wsURL := cfg.RemoteURL
	if wsURL != "" {
		log.Info("navigator: connecting to remote chrome", "url", wsURL)
	} else {
		l := launcher.New().
			Context(ctx).
			Headless(!cfg.Headful).
			NoSandbox(true).
			Set("disable-gpu").
			Set("disable-dev-shm-usage").
			Set("window-size", "1920,1080").
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("navigator: launch: %w", err)
		}
		wsURL = u
		s.lnch = l
		log.Info("navigator: launched local chrome", "url", wsURL, "headful", cfg.Headful)
	}

	b := rod.New().Context(ctx).ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		s.Close()
		return nil, fmt.Errorf("navigator: connect: %w", err)
	}
	s.browser = b
	return s, nil
}

// Close closes the tab, the browser and the launched process. Only the
// first call does work.
func (s *RodSession) Close() error {
	s.closeOnce.Do(func() {
		if s.router != nil {
			if err := s.router.Stop(); err != nil {
				s.cfg.Logger.Debug("navigator: stop hijack router", "error", err)
			}
		}
		if s.page != nil {
			s.page.Close()
		}
		if s.browser != nil {
			s.closeErr = s.browser.Close()
		}
		if s.lnch != nil {
			s.lnch.Cleanup()
		}
		s.cfg.Logger.Info("navigator: session closed")
	})
	return s.closeErr
}

// Load navigates the session tab to url. The tab is created on first use.
func (s *RodSession) Load(ctx context.Context, url string) error {
	if s.page == nil {
		page, err := stealth.Page(s.browser)
		if err != nil {
			return &icms.NavigationError{URL: url, Op: "open tab", Cause: err}
		}
		s.page = page
		if len(s.cfg.ResourceBlocking) > 0 {
			s.router = applyResourceBlocking(page, s.cfg.ResourceBlocking)
		}
	}

	navCtx, cancel := context.WithTimeout(ctx, s.cfg.Waits.Navigate)
	defer cancel()

	if err := s.page.Context(navCtx).Navigate(url); err != nil {
		return &icms.NavigationError{URL: url, Op: "navigate", Cause: err}
	}
	if err := s.page.Context(navCtx).WaitLoad(); err != nil {
		s.cfg.Logger.Warn("navigator: wait load", "url", url, "error", err)
	}
	if err := sleepCtx(ctx, s.cfg.Waits.Load); err != nil {
		return &icms.NavigationError{URL: url, Op: "settle", Cause: err}
	}
	return nil
}

// FindTable returns the first table on the current page.
func (s *RodSession) FindTable(ctx context.Context) (Table, error) {
	page, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	els, err := page.Elements("table")
	if err != nil {
		return nil, &icms.NavigationError{URL: s.url(), Op: "find table", Cause: err}
	}
	if els.Empty() {
		return nil, &icms.NavigationError{URL: s.url(), Op: "find table"}
	}
	return &rodTable{el: els.First()}, nil
}

// FindSections pairs each heading with the first table after it.
func (s *RodSession) FindSections(ctx context.Context, headingTag string) ([]Section, error) {
	page, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	heads, err := page.Elements(headingTag)
	if err != nil {
		return nil, &icms.NavigationError{URL: s.url(), Op: "find headings", Cause: err}
	}
	out := make([]Section, 0, len(heads))
	for _, h := range heads {
		text, err := h.Text()
		if err != nil {
			s.cfg.Logger.Debug("navigator: heading text", "error", err)
			continue
		}
		sec := Section{Heading: strings.TrimSpace(text)}
		tbls, err := h.ElementsX("following::table[1]")
		if err == nil && !tbls.Empty() {
			sec.Table = &rodTable{el: tbls.First()}
		}
		out = append(out, sec)
	}
	return out, nil
}

const collectLinksJS = `() => JSON.stringify(Array.from(document.querySelectorAll('a')).map(a => ({
	text: (a.textContent || '').trim(),
	class: a.getAttribute('class') || '',
	aria: a.getAttribute('aria-label') || '',
	disabled: a.getAttribute('aria-disabled') === 'true' || a.hasAttribute('disabled'),
})))`

// AdvancePage clicks the control leading to page current+1. The element is
// scrolled into view and clicked from script so overlays cannot swallow
// the click.
func (s *RodSession) AdvancePage(ctx context.Context, current int) (bool, error) {
	page, err := s.current(ctx)
	if err != nil {
		return false, err
	}
	res, err := page.Eval(collectLinksJS)
	if err != nil {
		return false, &icms.NavigationError{URL: s.url(), Op: "list links", Cause: err}
	}
	var links []Link
	if err := json.Unmarshal([]byte(res.Value.Str()), &links); err != nil {
		return false, &icms.NavigationError{URL: s.url(), Op: "decode links", Cause: err}
	}

	idx, ok := ChooseAdvance(links, current)
	if !ok {
		return false, nil
	}

	if _, err := page.Eval(`(i) => document.querySelectorAll('a')[i].scrollIntoView(true)`, idx); err != nil {
		return false, &icms.NavigationError{URL: s.url(), Op: "scroll", Cause: err}
	}
	if err := sleepCtx(ctx, s.cfg.Waits.Scroll); err != nil {
		return false, err
	}
	if _, err := page.Eval(`(i) => document.querySelectorAll('a')[i].click()`, idx); err != nil {
		return false, &icms.NavigationError{URL: s.url(), Op: "click", Cause: err}
	}
	s.cfg.Logger.Debug("navigator: advanced", "from", current, "link", links[idx].Text)
	if err := sleepCtx(ctx, s.cfg.Waits.Click); err != nil {
		return false, err
	}
	return true, nil
}

func (s *RodSession) current(ctx context.Context) (*rod.Page, error) {
	if s.page == nil {
		return nil, &icms.NavigationError{Op: "use page", Cause: errNoPage}
	}
	return s.page.Context(ctx), nil
}

func (s *RodSession) url() string {
	if s.page == nil {
		return ""
	}
	info, err := s.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

var errNoPage = errors.New("no page loaded")

type rodTable struct {
	el *rod.Element
}

func (t *rodTable) HTML(ctx context.Context) (string, error) {
	h, err := t.el.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("navigator: table html: %w", err)
	}
	return h, nil
}
