package emailchange

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testUser struct {
	id    string
	email string
}

func (u *testUser) GetID() string         { return u.id }
func (u *testUser) GetEmail() string      { return u.email }
func (u *testUser) SetEmail(email string) { u.email = email }
func (u *testUser) AccountType() string   { return "user" }

// savingUser records the emails it is asked to save
type savingUser struct {
	*testUser
	err   error
	saved []string
}

func (u *savingUser) SaveEmail(ctx context.Context, oldEmail string) error {
	if u.err != nil {
		return u.err
	}
	u.saved = append(u.saved, u.email)
	return nil
}

type testAccounts struct {
	mu    sync.Mutex
	users map[string]*testUser
}

func newTestAccounts(users ...*testUser) *testAccounts {
	a := &testAccounts{users: make(map[string]*testUser)}
	for _, u := range users {
		a.users[AccountIdentifier(u)] = u
	}
	return a
}

func (a *testAccounts) FindAccount(ctx context.Context, accountIdentifier string) (Account, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	u, ok := a.users[accountIdentifier]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return u, nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]EventType, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}

const testRoute = "verify_email_change"

func newTestURLBuilder(t *testing.T) URLBuilder {
	builder, err := NewRouteURLBuilder("https://app.example.com", map[string]string{
		testRoute: "/email-change/verify",
	})
	require.NoError(t, err)
	return builder
}

func linkParams(t *testing.T, rawURL string) (selector, token string) {
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	return u.Query().Get(SelectorParam), u.Query().Get(TokenParam)
}

// wrongToken returns a token of the same shape that does not match
func wrongToken(token string) string {
	b := []byte(token)
	if b[len(b)-1] == '0' {
		b[len(b)-1] = '1'
	} else {
		b[len(b)-1] = '0'
	}
	return string(b)
}
