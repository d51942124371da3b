package synergy

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/Yubo-Cao/grade-dashboard/lib/cache"
	"github.com/Yubo-Cao/grade-dashboard/lib/htmlutil"
	"github.com/Yubo-Cao/grade-dashboard/lib/jsvar"
	"github.com/Yubo-Cao/grade-dashboard/lib/retry"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/codes"
)

// markup anchors the portal has kept stable across terms
const (
	appsHeading      = "MY eCLASS Apps"
	spaEntryId       = "my_student_vue"
	gradebookLinkId  = "grade_book"
	navigationVar    = "PXP.NavigationData"
	dashboardPath    = "dca/student/dashboard"
	gradebookContent = "div#gradebook-content"
)

// NavLink is one navigable destination keyed by its normalized label.
type NavLink struct {
	Id  string
	Url *url.URL
}

type landingPage struct {
	// Url is where the SPA actually landed after the interstitial,
	// the root every relative link in the app resolves against.
	Url *url.URL
	Doc *goquery.Document
}

// navigator holds the session-scoped cache of each navigation stage.
// Failure at any stage invalidates that stage and everything computed
// from it, so retries never run against stale upstream artifacts; the
// invalidation graph is fixed here, at construction.
type navigator struct {
	session *Session

	apps        *cache.Single[[]NavLink]
	entryUrl    *cache.Single[*url.URL]
	landing     *cache.Single[landingPage]
	script      *cache.Single[string]
	navigations *cache.Single[[]NavLink]
	gradebook   *cache.Single[*goquery.Document]
	courseList  *cache.Single[[]RawCourse]

	// chain is the stage order; the invalidation set of a stage is its
	// own suffix of this slice
	chain []cache.Clearable
}

func newNavigator(session *Session) *navigator {
	n := &navigator{
		session:     session,
		apps:        cache.NewSingle[[]NavLink](),
		entryUrl:    cache.NewSingle[*url.URL](),
		landing:     cache.NewSingle[landingPage](),
		script:      cache.NewSingle[string](),
		navigations: cache.NewSingle[[]NavLink](),
		gradebook:   cache.NewSingle[*goquery.Document](),
		courseList:  cache.NewSingle[[]RawCourse](),
	}
	n.chain = []cache.Clearable{
		n.apps, n.entryUrl, n.landing, n.script,
		n.navigations, n.gradebook, n.courseList,
	}
	return n
}

// downstream returns the invalidation set for a stage: its own cache and
// every stage after it.
func (n *navigator) downstream(stage cache.Clearable) []cache.Clearable {
	for i, c := range n.chain {
		if c == stage {
			return n.chain[i:]
		}
	}
	return n.chain
}

func (n *navigator) retryOpts(stage cache.Clearable) retry.Options {
	return retry.Options{
		MaxAttempts: n.session.maxAttempts,
		Delay:       n.session.delay,
		Invalidates: n.downstream(stage),
	}
}

// Apps lists the dashboard's app tiles keyed by normalized label.
func (s *Session) Apps(ctx context.Context) ([]NavLink, error) {
	return retry.Do(ctx, s.nav.retryOpts(s.nav.apps), "apps", func(ctx context.Context) ([]NavLink, error) {
		return s.nav.apps.Get(ctx, s.fetchApps)
	})
}

func (s *Session) fetchApps(ctx context.Context) ([]NavLink, error) {
	ctx, span := tracer.Start(ctx, "navigator:apps")
	defer span.End()

	res, err := s.http.R().
		SetContext(ctx).
		Get(s.base.JoinPath(dashboardPath).String())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch dashboard")
		return nil, err
	}
	if res.IsError() {
		return nil, &StatusError{Action: "dashboard", StatusCode: res.StatusCode(), Body: res.String()}
	}
	doc, err := parseDocument(res)
	if err != nil {
		return nil, err
	}

	var links []NavLink
	doc.Find("*").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if htmlutil.CleanText(sel.Text()) != appsHeading {
			return true
		}
		list := sel.NextAllFiltered("ul").First()
		if list.Length() == 0 {
			return true
		}
		list.Find("li").Each(func(_ int, li *goquery.Selection) {
			a := li.Find("a").First()
			name := htmlutil.CleanText(a.Find("span").First().Text())
			href := a.AttrOr("href", "")
			if name == "" || href == "" {
				return
			}
			linkUrl, err := s.base.Parse(href)
			if err != nil {
				return
			}
			links = append(links, NavLink{Id: htmlutil.Identifier(name), Url: linkUrl})
		})
		return false
	})
	if len(links) == 0 {
		span.SetStatus(codes.Error, "no app tiles found")
		return nil, fmt.Errorf("%w: no app tiles under %q", ErrMalformedPage, appsHeading)
	}
	return links, nil
}

func (s *Session) spaEntryUrl(ctx context.Context) (*url.URL, error) {
	return retry.Do(ctx, s.nav.retryOpts(s.nav.entryUrl), "spa_entry_url", func(ctx context.Context) (*url.URL, error) {
		return s.nav.entryUrl.Get(ctx, func(ctx context.Context) (*url.URL, error) {
			apps, err := s.Apps(ctx)
			if err != nil {
				return nil, err
			}
			link, ok := findLink(apps, spaEntryId)
			if !ok {
				return nil, fmt.Errorf("%w: no %q app tile", ErrMalformedPage, spaEntryId)
			}
			return link, nil
		})
	})
}

// spaLanding enters the SPA, pushing through the auto-submitting
// interstitial form when one is served.
func (s *Session) spaLanding(ctx context.Context) (landingPage, error) {
	return retry.Do(ctx, s.nav.retryOpts(s.nav.landing), "spa_landing", func(ctx context.Context) (landingPage, error) {
		return s.nav.landing.Get(ctx, s.fetchLanding)
	})
}

func (s *Session) fetchLanding(ctx context.Context) (landingPage, error) {
	ctx, span := tracer.Start(ctx, "navigator:landing")
	defer span.End()

	entry, err := s.spaEntryUrl(ctx)
	if err != nil {
		return landingPage{}, err
	}

	res, err := s.http.R().SetContext(ctx).Get(entry.String())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch spa entry")
		return landingPage{}, err
	}
	if res.IsError() {
		return landingPage{}, &StatusError{Action: "spa_entry", StatusCode: res.StatusCode(), Body: res.String()}
	}
	doc, err := parseDocument(res)
	if err != nil {
		return landingPage{}, err
	}

	if form, ok := htmlutil.ParseForm(doc); ok {
		res, err = submitForm(ctx, s.http, form, finalURL(res))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to submit interstitial form")
			return landingPage{}, err
		}
		if res.IsError() {
			return landingPage{}, &StatusError{Action: "spa_interstitial", StatusCode: res.StatusCode(), Body: res.String()}
		}
		doc, err = parseDocument(res)
		if err != nil {
			return landingPage{}, err
		}
	}

	return landingPage{Url: finalURL(res), Doc: doc}, nil
}

// BaseUrl is the SPA's path parent, the root relative navigation URLs
// resolve against.
func (s *Session) BaseUrl(ctx context.Context) (*url.URL, error) {
	landing, err := s.spaLanding(ctx)
	if err != nil {
		return nil, err
	}
	return parentURL(landing.Url), nil
}

func (s *Session) bootstrapScript(ctx context.Context) (string, error) {
	return retry.Do(ctx, s.nav.retryOpts(s.nav.script), "bootstrap_script", func(ctx context.Context) (string, error) {
		return s.nav.script.Get(ctx, func(ctx context.Context) (string, error) {
			// the landing page is already in hand, no refetch
			landing, err := s.spaLanding(ctx)
			if err != nil {
				return "", err
			}
			script := landing.Doc.Find("head script").First().Text()
			if strings.TrimSpace(script) == "" {
				return "", fmt.Errorf("%w: no bootstrap script in head", ErrMalformedPage)
			}
			return script, nil
		})
	})
}

// Navigations decodes the SPA's embedded navigation map.
func (s *Session) Navigations(ctx context.Context) ([]NavLink, error) {
	return retry.Do(ctx, s.nav.retryOpts(s.nav.navigations), "navigations", func(ctx context.Context) ([]NavLink, error) {
		return s.nav.navigations.Get(ctx, s.fetchNavigations)
	})
}

func (s *Session) fetchNavigations(ctx context.Context) ([]NavLink, error) {
	script, err := s.bootstrapScript(ctx)
	if err != nil {
		return nil, err
	}
	base, err := s.BaseUrl(ctx)
	if err != nil {
		return nil, err
	}

	var nav struct {
		Items []struct {
			Description string `json:"description"`
			Url         string `json:"url"`
		} `json:"items"`
	}
	if err := jsvar.ExtractInto(navigationVar, script, &nav); err != nil {
		return nil, err
	}

	links := make([]NavLink, 0, len(nav.Items))
	for _, item := range nav.Items {
		linkUrl, err := base.Parse(item.Url)
		if err != nil {
			continue
		}
		links = append(links, NavLink{Id: htmlutil.Identifier(item.Description), Url: linkUrl})
	}
	return links, nil
}

func (s *Session) gradebookUrl(ctx context.Context) (*url.URL, error) {
	navs, err := s.Navigations(ctx)
	if err != nil {
		return nil, err
	}
	link, ok := findLink(navs, gradebookLinkId)
	if !ok {
		return nil, fmt.Errorf("%w: no %q navigation entry", ErrMalformedPage, gradebookLinkId)
	}
	return link, nil
}

func (s *Session) gradebookPage(ctx context.Context) (*goquery.Document, error) {
	return retry.Do(ctx, s.nav.retryOpts(s.nav.gradebook), "gradebook_page", func(ctx context.Context) (*goquery.Document, error) {
		return s.nav.gradebook.Get(ctx, s.fetchGradebookPage)
	})
}

func (s *Session) fetchGradebookPage(ctx context.Context) (*goquery.Document, error) {
	ctx, span := tracer.Start(ctx, "navigator:gradebook_page")
	defer span.End()

	gbUrl, err := s.gradebookUrl(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.http.R().SetContext(ctx).Get(gbUrl.String())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch gradebook page")
		return nil, err
	}
	if res.IsError() {
		return nil, &StatusError{Action: "gradebook_page", StatusCode: res.StatusCode(), Body: res.String()}
	}
	return parseDocument(res)
}

func findLink(links []NavLink, id string) (*url.URL, bool) {
	for _, l := range links {
		if l.Id == id {
			return l.Url, true
		}
	}
	return nil, false
}

// parentURL strips the last path segment, keeping a trailing slash so the
// result resolves relative references the way a browser would.
func parentURL(u *url.URL) *url.URL {
	parent := *u
	parent.RawQuery = ""
	parent.Fragment = ""
	dir := path.Dir(strings.TrimSuffix(parent.Path, "/"))
	if dir == "." || dir == "/" {
		parent.Path = "/"
	} else {
		parent.Path = dir + "/"
	}
	return &parent
}
