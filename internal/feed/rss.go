package feed

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"jobintel-engine/internal/domain"
)

const defaultUserAgent = "jobintel/1.0 (+local)"

// PasswordFunc resolves the basic-auth password for a source's user.
type PasswordFunc func(source, user string) (string, error)

type RSSFetcher struct {
	client    *http.Client
	limiter   *HostLimiter
	userAgent string
	password  PasswordFunc
}

type Option func(*RSSFetcher)

func WithHTTPClient(c *http.Client) Option { return func(f *RSSFetcher) { f.client = c } }

func WithLimiter(l *HostLimiter) Option { return func(f *RSSFetcher) { f.limiter = l } }

func WithUserAgent(ua string) Option {
	return func(f *RSSFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

func WithPasswords(fn PasswordFunc) Option { return func(f *RSSFetcher) { f.password = fn } }

func NewRSSFetcher(opts ...Option) *RSSFetcher {
	f := &RSSFetcher{
		client:    &http.Client{Timeout: 30 * time.Second},
		limiter:   NewHostLimiter(1.0, 2),
		userAgent: defaultUserAgent,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

func (f *RSSFetcher) Fetch(ctx context.Context, src Source) (Result, error) {
	if err := f.limiter.WaitURL(ctx, src.URL); err != nil {
		return Result{Source: src.Name}, err
	}

	fp := gofeed.NewParser()
	fp.Client = f.client
	fp.UserAgent = f.userAgent
	if src.AuthUser != "" {
		if f.password == nil {
			return Result{Source: src.Name}, fmt.Errorf("feed %s: auth_user set but no password store", src.Name)
		}
		pw, err := f.password(src.Name, src.AuthUser)
		if err != nil {
			return Result{Source: src.Name}, fmt.Errorf("feed %s: %w", src.Name, err)
		}
		fp.AuthConfig = &gofeed.Auth{Username: src.AuthUser, Password: pw}
	}

	feed, err := fp.ParseURLWithContext(src.URL, ctx)
	if err != nil {
		return Result{Source: src.Name}, fmt.Errorf("fetching %s: %w", src.Name, err)
	}
	return Postings(src, feed), nil
}

// Postings maps every usable item of a parsed feed.
func Postings(src Source, feed *gofeed.Feed) Result {
	res := Result{Source: src.Name}
	if feed == nil {
		return res
	}
	res.Postings = make([]domain.Posting, 0, len(feed.Items))
	for _, it := range feed.Items {
		p, ok := ItemToPosting(src, it)
		if !ok {
			res.Skipped++
			continue
		}
		res.Postings = append(res.Postings, p)
	}
	return res
}
