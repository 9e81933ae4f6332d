package doora

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/doora-app/doora/mail"
	"github.com/doora-app/doora/upload"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

type fakeMailer struct {
	mu       sync.Mutex
	messages []mail.Message
	fail     bool
}

func (f *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("smtp down")
	}
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeMailer) last(t *testing.T) mail.Message {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		t.Fatal("no mail sent")
	}
	return f.messages[len(f.messages)-1]
}

// tokenFromLink pulls the token query parameter out of an action link.
func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	_, token, ok := strings.Cut(link, "token=")
	if !ok {
		t.Fatalf("no token in link %q", link)
	}
	return token
}

type fakeUploader struct {
	mu       sync.Mutex
	uploads  int
	deleted  []string
	fail     bool
	lastType string

	// onUpload runs after a successful upload, before the result is
	// returned to the engine.
	onUpload func()
}

func (f *fakeUploader) Upload(_ context.Context, body io.Reader, contentType string) (*upload.Result, error) {
	f.mu.Lock()
	if f.fail {
		f.mu.Unlock()
		return nil, errors.New("object storage down")
	}
	_, _ = io.Copy(io.Discard, body)
	f.uploads++
	f.lastType = contentType
	key := fmt.Sprintf("avatars/test/%d", f.uploads)
	hook := f.onUpload
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return &upload.Result{
		URL:      "https://cdn.doora.test/" + key,
		PublicID: key,
	}, nil
}

func (f *fakeUploader) Delete(_ context.Context, publicID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, publicID)
	return nil
}

func testConfig() Config {
	cfg := defaultConfig()
	cfg.JWT.AccessSecret = []byte("0123456789abcdef0123456789abcdef")
	cfg.JWT.RefreshSecret = []byte("fedcba9876543210fedcba9876543210")
	cfg.Password.Cost = 4
	cfg.Token.VerifyBaseURL = "https://doora.test/verify"
	cfg.Token.ResetBaseURL = "https://doora.test/reset"
	return cfg
}

func newTestEngine(t *testing.T, cfg Config, mailer mail.Sender, uploader upload.Uploader) *Engine {
	t.Helper()
	_, rdb := newTestRedis(t)
	if uploader == nil {
		uploader = &fakeUploader{}
	}

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithMailer(mailer).
		WithUploader(uploader).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func registerTestAccount(t *testing.T, e *Engine, mailer *fakeMailer) *Account {
	t.Helper()
	acc, err := e.Register(context.Background(), RegisterInput{
		Firstname:         "amina",
		Email:             "amina@example.com",
		Phone:             "+22177001122",
		Password:          "strong-password",
		Avatar:            strings.NewReader("fake-jpeg-bytes"),
		AvatarContentType: "image/jpeg",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return acc
}

func TestLoginSuccess(t *testing.T) {
	mailer := &fakeMailer{}
	engine := newTestEngine(t, testConfig(), mailer, nil)
	registerTestAccount(t, engine, mailer)

	res, err := engine.Login(context.Background(), "amina@example.com", "strong-password")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if res.AccessToken == "" || res.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}
	if res.Account == nil || res.Account.Email != "amina@example.com" {
		t.Fatalf("unexpected account view: %+v", res.Account)
	}

	auth, err := engine.ValidateAccess(context.Background(), res.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccess failed: %v", err)
	}
	if auth.AccountID != res.Account.ID || auth.Email != "amina@example.com" {
		t.Fatalf("claims mismatch: %+v", auth)
	}
}

func TestLoginFailuresAreCoarse(t *testing.T) {
	mailer := &fakeMailer{}
	engine := newTestEngine(t, testConfig(), mailer, nil)
	registerTestAccount(t, engine, mailer)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"wrong password", "amina@example.com", "wrong-password"},
		{"unknown email", "nobody@example.com", "strong-password"},
		{"empty password", "amina@example.com", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Login(context.Background(), tt.email, tt.password)
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
		})
	}
}

func TestRefreshRotatesAndDetectsReuse(t *testing.T) {
	mailer := &fakeMailer{}
	engine := newTestEngine(t, testConfig(), mailer, nil)
	registerTestAccount(t, engine, mailer)

	login, err := engine.Login(context.Background(), "amina@example.com", "strong-password")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	first, err := engine.Refresh(context.Background(), login.RefreshToken)
	if err != nil {
		t.Fatalf("first Refresh failed: %v", err)
	}
	if first.RefreshToken == login.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}
	if first.AccessToken == "" {
		t.Fatal("expected new access token")
	}

	// Replaying the rotated-away token is reuse and revokes the session.
	if _, err := engine.Refresh(context.Background(), login.RefreshToken); !errors.Is(err, ErrRefreshReuse) {
		t.Fatalf("expected ErrRefreshReuse, got %v", err)
	}
	if _, err := engine.Refresh(context.Background(), first.RefreshToken); !errors.Is(err, ErrRefreshReuse) {
		t.Fatalf("expected revoked session after reuse, got %v", err)
	}
}

func TestRefreshRejectsGarbageAndAccessTokens(t *testing.T) {
	mailer := &fakeMailer{}
	engine := newTestEngine(t, testConfig(), mailer, nil)
	registerTestAccount(t, engine, mailer)

	login, err := engine.Login(context.Background(), "amina@example.com", "strong-password")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	for _, token := range []string{"", "not-a-jwt", login.AccessToken} {
		if _, err := engine.Refresh(context.Background(), token); !errors.Is(err, ErrRefreshInvalid) {
			t.Fatalf("token %q: expected ErrRefreshInvalid, got %v", token, err)
		}
	}
}

func TestLogoutRevokesRefresh(t *testing.T) {
	mailer := &fakeMailer{}
	engine := newTestEngine(t, testConfig(), mailer, nil)
	registerTestAccount(t, engine, mailer)

	login, err := engine.Login(context.Background(), "amina@example.com", "strong-password")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if err := engine.Logout(context.Background(), login.RefreshToken); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if _, err := engine.Refresh(context.Background(), login.RefreshToken); err == nil {
		t.Fatal("expected refresh to fail after logout")
	}
	// Logout is idempotent at the store level; a second logout with the
	// same (still well-formed) token succeeds.
	if err := engine.Logout(context.Background(), login.RefreshToken); err != nil {
		t.Fatalf("second Logout failed: %v", err)
	}
}

func TestValidateAccessRejectsInvalid(t *testing.T) {
	mailer := &fakeMailer{}
	engine := newTestEngine(t, testConfig(), mailer, nil)
	registerTestAccount(t, engine, mailer)

	login, err := engine.Login(context.Background(), "amina@example.com", "strong-password")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	for _, token := range []string{"", "garbage", login.RefreshToken} {
		if _, err := engine.ValidateAccess(context.Background(), token); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("token %q: expected ErrUnauthorized, got %v", token, err)
		}
	}
}

func TestValidateAccessRecordsLatencySamples(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	mailer := &fakeMailer{}
	engine := newTestEngine(t, cfg, mailer, nil)
	registerTestAccount(t, engine, mailer)

	login, err := engine.Login(context.Background(), "amina@example.com", "strong-password")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	const calls = 3
	for i := 0; i < calls; i++ {
		if _, err := engine.ValidateAccess(context.Background(), login.AccessToken); err != nil {
			t.Fatalf("ValidateAccess failed: %v", err)
		}
	}

	buckets := engine.MetricsSnapshot().Histograms[MetricValidateLatency]
	if len(buckets) == 0 {
		t.Fatal("no validate-latency histogram in snapshot")
	}
	var samples uint64
	for _, n := range buckets {
		samples += n
	}
	// One sample per call, timed when the call returns.
	if samples != calls {
		t.Fatalf("latency samples = %d, want %d", samples, calls)
	}
}

func TestRefreshConcurrentSingleWinner(t *testing.T) {
	mailer := &fakeMailer{}
	engine := newTestEngine(t, testConfig(), mailer, nil)
	registerTestAccount(t, engine, mailer)

	login, err := engine.Login(context.Background(), "amina@example.com", "strong-password")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = engine.Refresh(context.Background(), login.RefreshToken)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else if !errors.Is(err, ErrRefreshReuse) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins > 1 {
		t.Fatalf("expected at most one winner, got %d", wins)
	}
}
