// Package synergy scrapes a Synergy/StudentVUE gradebook reached through
// a district dashboard. The portal exposes no API: a session logs in via
// the dashboard's form endpoint, bootstraps the StudentVUE SPA through an
// auto-submitting interstitial, and drives the gradebook's stateful
// "current course" machinery to reach the two JSON data endpoints.
package synergy

import (
	"context"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/Yubo-Cao/grade-dashboard/lib/cache"
	"github.com/Yubo-Cao/grade-dashboard/lib/telemetry"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/synergy")

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// the hidden reset-password routing token the dashboard's login form
// posts alongside credentials
const loginResetToken = "p0/IZ7_3AM0I440J8GF30AIL6LB453082=CZ6_3AM0I440J8GF30AIL6LB4530G6=LA0=OC=Eaction!ResetPasswd==/#Z7_3AM0I440J8GF30AIL6LB453082"

type StoreOptions struct {
	// BaseURL is the district dashboard root the login form lives under.
	BaseURL string
	// Capacity bounds the number of live sessions; least recently used
	// sessions are torn down when exceeded. Defaults to 64.
	Capacity int
	// UserAgent overrides the browser identity presented to the portal.
	UserAgent string
	// MaxAttempts and Delay configure navigation retries.
	// Default to 3 attempts, 100ms apart.
	MaxAttempts int
	Delay       time.Duration
	// Timeout bounds every network round trip. Defaults to 30s.
	Timeout time.Duration
}

// Store owns the authenticated sessions, keyed by credential pair.
// Construct one per process and pass it down; sessions must not be
// created any other way.
type Store struct {
	opts     StoreOptions
	base     *url.URL
	sessions *cache.Keyed[*Session]
}

func NewStore(opts StoreOptions) (*Store, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, err
	}
	if opts.Capacity <= 0 {
		opts.Capacity = 64
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.Delay <= 0 {
		opts.Delay = time.Millisecond * 100
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Second * 30
	}

	s := &Store{opts: opts, base: base}
	s.sessions = cache.NewKeyed[*Session](opts.Capacity, func(_ string, session *Session) {
		session.http.GetClient().CloseIdleConnections()
	})
	return s, nil
}

// Session is the one mutable shared resource of the pipeline: cookie and
// auth state plus the portal's "current course" pointer. The navigation
// caches live on the session so they can never outlive it, and courseMu
// serializes the stateful load-course sequence.
type Session struct {
	Username string

	http     *resty.Client
	base     *url.URL
	nav      *navigator
	courseMu sync.Mutex

	maxAttempts int
	delay       time.Duration
}

// GetSession returns the cached session for the credential pair or
// performs the login handshake. Concurrent first callers share a single
// login.
func (s *Store) GetSession(ctx context.Context, username, password string) (*Session, error) {
	key := username + ":" + password
	return s.sessions.Get(ctx, key, func(ctx context.Context) (*Session, error) {
		return s.login(ctx, username, password)
	})
}

func (s *Store) login(ctx context.Context, username, password string) (*Session, error) {
	ctx, span := tracer.Start(ctx, "store:login")
	defer span.End()

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client := resty.New()
	client.SetCookieJar(jar)
	client.SetHeader("user-agent", s.opts.UserAgent)
	client.SetTimeout(s.opts.Timeout)
	telemetry.InstrumentResty(client, "scrapers/synergy/http")

	loginUrl := s.base.JoinPath("pkmslogin.form")
	res, err := client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"forgotpass":      loginResetToken,
			"login-form-type": "pwd",
			"username":        username,
			"password":        password,
		}).
		Post(loginUrl.String())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to post login form")
		return nil, err
	}
	if res.IsError() {
		span.SetStatus(codes.Error, ErrLoginFailed.Error())
		client.GetClient().CloseIdleConnections()
		return nil, &loginError{status: res.StatusCode()}
	}

	session := &Session{
		Username:    username,
		http:        client,
		base:        s.base,
		maxAttempts: s.opts.MaxAttempts,
		delay:       s.opts.Delay,
	}
	session.nav = newNavigator(session)
	return session, nil
}

// CleanupSession tears down the session for one credential pair. Safe to
// call when no such session exists.
func (s *Store) CleanupSession(username, password string) {
	s.sessions.Remove(username + ":" + password)
}

// Cleanup tears down every live session.
func (s *Store) Cleanup() {
	s.sessions.Clear()
}

type loginError struct {
	status int
}

func (e *loginError) Error() string {
	return fmt.Sprintf("login failed with status %d", e.status)
}

func (e *loginError) Unwrap() error { return ErrLoginFailed }
