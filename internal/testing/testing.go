// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/dronewatch/internal/models"
	"github.com/desertthunder/dronewatch/internal/services"
)

// MockIdentityProvider is a test double for [services.IdentityProvider].
//
// Sign-in and sign-out notify listeners synchronously, like the real client. INITIAL_SESSION is delivered from
// a goroutine that the disposer waits for.
type MockIdentityProvider struct {
	Initial        *models.Identity
	SignInIdentity *models.Identity
	SignInErr      error
	SignUpIdentity *models.Identity
	SignUpErr      error
	SignOutErr     error
	SubscribeErr   error

	mu           sync.Mutex
	listeners    map[int]func(services.AuthEvent)
	nextID       int
	calls        map[string]int
	unsubscribed int
}

func (m *MockIdentityProvider) count(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[name]++
}

// Calls returns how many times the named method was invoked.
func (m *MockIdentityProvider) Calls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

// Unsubscribed returns how many disposers have run.
func (m *MockIdentityProvider) Unsubscribed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unsubscribed
}

func (m *MockIdentityProvider) SignInWithPassword(ctx context.Context, email, password string) (*models.Identity, error) {
	m.count("SignInWithPassword")
	if m.SignInErr != nil {
		return nil, m.SignInErr
	}
	m.Emit(services.AuthEvent{Kind: services.SignedIn, Identity: m.SignInIdentity})
	return m.SignInIdentity, nil
}

func (m *MockIdentityProvider) SignUp(ctx context.Context, email, password string) (*models.Identity, error) {
	m.count("SignUp")
	return m.SignUpIdentity, m.SignUpErr
}

func (m *MockIdentityProvider) SignOut(ctx context.Context) error {
	m.count("SignOut")
	m.Emit(services.AuthEvent{Kind: services.SignedOut})
	return m.SignOutErr
}

func (m *MockIdentityProvider) OnAuthStateChange(ctx context.Context, fn func(services.AuthEvent)) (func(), error) {
	m.count("OnAuthStateChange")
	if m.SubscribeErr != nil {
		return nil, m.SubscribeErr
	}

	m.mu.Lock()
	if m.listeners == nil {
		m.listeners = make(map[int]func(services.AuthEvent))
	}
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	initial := m.Initial
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		fn(services.AuthEvent{Kind: services.InitialSession, Identity: initial})
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			<-done
			m.mu.Lock()
			delete(m.listeners, id)
			m.unsubscribed++
			m.mu.Unlock()
		})
	}, nil
}

// Emit delivers ev to every listener, as if the provider's session changed on its own.
func (m *MockIdentityProvider) Emit(ev services.AuthEvent) {
	m.mu.Lock()
	fns := make([]func(services.AuthEvent), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// MockSettingsTable is an in-memory [services.SettingsTable] that counts calls.
type MockSettingsTable struct {
	SelectErr error
	InsertErr error
	UpdateErr error

	mu    sync.Mutex
	rows  map[string]models.Settings
	calls map[string]int
}

// NewMockSettingsTable creates a table holding rows.
func NewMockSettingsTable(rows ...models.Settings) *MockSettingsTable {
	m := &MockSettingsTable{rows: make(map[string]models.Settings), calls: make(map[string]int)}
	for _, r := range rows {
		m.rows[r.OwnerID] = r
	}
	return m
}

func (m *MockSettingsTable) Select(ctx context.Context, uid string) ([]models.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["Select"]++
	if m.SelectErr != nil {
		return nil, m.SelectErr
	}
	if row, ok := m.rows[uid]; ok {
		return []models.Settings{row}, nil
	}
	return []models.Settings{}, nil
}

func (m *MockSettingsTable) Insert(ctx context.Context, row models.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["Insert"]++
	if m.InsertErr != nil {
		return m.InsertErr
	}
	m.rows[row.OwnerID] = row
	return nil
}

func (m *MockSettingsTable) Update(ctx context.Context, uid, address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["Update"]++
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	row := m.rows[uid]
	row.OwnerID = uid
	row.OBSServer = address
	m.rows[uid] = row
	return nil
}

// Row returns the stored row for uid.
func (m *MockSettingsTable) Row(uid string) (models.Settings, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[uid]
	return row, ok
}

// Calls returns how many times the named method was invoked.
func (m *MockSettingsTable) Calls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

// TotalCalls counts every network-facing call.
func (m *MockSettingsTable) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

// MockIdentityCache records what the gateway writes to the persisted cache.
type MockIdentityCache struct {
	SaveErr  error
	ClearErr error

	mu      sync.Mutex
	current *models.Identity
	saves   int
	clears  int
}

func (m *MockIdentityCache) Save(identity *models.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.current = identity
	return nil
}

func (m *MockIdentityCache) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clears++
	m.current = nil
	return m.ClearErr
}

// Current returns the cached identity.
func (m *MockIdentityCache) Current() *models.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Counts returns how many saves and clears were made.
func (m *MockIdentityCache) Counts() (saves, clears int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves, m.clears
}

// MockAPIClient answers detections backend calls from fixed responses.
type MockAPIClient struct {
	Response *services.APIResponse
	Err      error

	mu    sync.Mutex
	gets  int
	posts [][]byte
}

func (m *MockAPIClient) Get(ctx context.Context, path string) (*services.APIResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	return m.Response, m.Err
}

func (m *MockAPIClient) Post(ctx context.Context, path string, data []byte) (*services.APIResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts = append(m.posts, append([]byte(nil), data...))
	if m.Err != nil {
		return nil, m.Err
	}
	return &services.APIResponse{StatusCode: http.StatusCreated}, nil
}

// Gets returns the number of GET calls.
func (m *MockAPIClient) Gets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gets
}

// Posts returns the bodies of every POST call.
func (m *MockAPIClient) Posts() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.posts...)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
