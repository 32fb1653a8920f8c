// Package scraper fills the source directory from a website: it collects the
// same-site links on a start page and saves the visible text of each linked
// page as a .txt file.
package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"
)

const maxPageBytes = 10 << 20

// Config tunes the crawler. Zero values fall back to defaults.
type Config struct {
	Concurrency int
	Timeout     time.Duration
	UserAgent   string
}

// Result summarizes one crawl.
type Result struct {
	Links  int
	Saved  []string
	Failed []string
}

type Scraper struct {
	outDir string
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

func New(outDir string, cfg Config, logger *slog.Logger) *Scraper {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "askrag/1.0"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scraper{
		outDir: outDir,
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Run fetches baseURL, then saves every same-host page it links to. A page
// that cannot be fetched is logged and skipped; only a failure on baseURL or
// on the output directory aborts the run.
func (s *Scraper) Run(ctx context.Context, baseURL string) (Result, error) {
	base, err := url.Parse(baseURL)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return Result{}, fmt.Errorf("invalid base URL %q", baseURL)
	}
	if err := os.MkdirAll(s.outDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("creating %s: %w", s.outDir, err)
	}

	doc, err := s.fetch(ctx, base.String())
	if err != nil {
		return Result{}, err
	}
	links := SameSiteLinks(doc, base)

	// Pages that map to the same file keep the first URL in sorted order.
	targets := make(map[string]string, len(links))
	for _, link := range links {
		name := Filename(link)
		if _, dup := targets[name]; !dup {
			targets[name] = link
		}
	}
	names := make([]string, 0, len(targets))
	for name := range targets {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		mu  sync.Mutex
		res = Result{Links: len(links)}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, name := range names {
		link := targets[name]
		g.Go(func() error {
			err := s.save(gctx, link, name)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Warn("page failed", "url", link, "error", err)
				res.Failed = append(res.Failed, link)
				return nil
			}
			s.logger.Info("page saved", "url", link, "file", name)
			res.Saved = append(res.Saved, name)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return res, err
	}
	sort.Strings(res.Saved)
	sort.Strings(res.Failed)
	return res, nil
}

func (s *Scraper) save(ctx context.Context, link, name string) error {
	doc, err := s.fetch(ctx, link)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.outDir, name), []byte(BodyText(doc)), 0o644)
}

func (s *Scraper) fetch(ctx context.Context, link string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", link, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: %s", link, resp.Status)
	}
	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", link, err)
	}
	return doc, nil
}

// SameSiteLinks returns the absolute URLs of every anchor on doc that points
// at base's host, fragments removed, sorted and deduplicated.
func SameSiteLinks(doc *goquery.Document, base *url.URL) []string {
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		u := base.ResolveReference(ref)
		if u.Host != base.Host || (u.Scheme != "http" && u.Scheme != "https") {
			return
		}
		u.Fragment = ""
		u.RawFragment = ""
		seen[u.String()] = struct{}{}
	})
	out := make([]string, 0, len(seen))
	for link := range seen {
		out = append(out, link)
	}
	sort.Strings(out)
	return out
}

var unsafeChars = strings.NewReplacer("<", "", ">", "", ":", "", `"`, "", "/", "", `\`, "", "|", "", "?", "", "*", "")

// Filename names the file a page is saved to: its path with slashes turned
// into underscores, "home" for the root, always ending in .txt.
func Filename(link string) string {
	name := ""
	if u, err := url.Parse(link); err == nil {
		name = strings.ReplaceAll(strings.Trim(u.EscapedPath(), "/"), "/", "_")
	}
	if name == "" {
		name = "home"
	}
	if !strings.HasSuffix(name, ".txt") {
		name += ".txt"
	}
	return unsafeChars.Replace(name)
}

const blockElements = "address, article, aside, blockquote, dd, div, dl, dt, figcaption, footer, form, " +
	"h1, h2, h3, h4, h5, h6, header, hr, li, main, nav, ol, p, pre, section, table, td, th, tr, ul"

// BodyText approximates the text a browser renders for the page body: no
// scripts or styles, one line per block element, runs of spaces collapsed.
func BodyText(doc *goquery.Document) string {
	doc.Find("script, style, noscript, template, svg").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find(blockElements).AppendHtml("\n")

	var lines []string
	for _, line := range strings.Split(doc.Find("body").Text(), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
