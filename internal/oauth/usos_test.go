package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUSOS is a minimal OAuth 1.0a provider. It does not verify signatures,
// only which tokens and verifiers are presented.
type fakeUSOS struct {
	verifier     string
	userStatus   int
	userBody     string
	requestCalls int
	lastScopes   string
}

func (f *fakeUSOS) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/services/oauth/request_token", func(w http.ResponseWriter, r *http.Request) {
		f.requestCalls++
		f.lastScopes = r.URL.Query().Get("scopes")
		if !strings.Contains(r.Header.Get("Authorization"), "oauth_callback=") {
			http.Error(w, "missing callback", http.StatusBadRequest)
			return
		}
		w.Write([]byte("oauth_token=req-token&oauth_token_secret=req-secret&oauth_callback_confirmed=true"))
	})
	mux.HandleFunc("/services/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.Contains(auth, `oauth_token="req-token"`) ||
			!strings.Contains(auth, `oauth_verifier="`+f.verifier+`"`) {
			http.Error(w, "invalid verifier", http.StatusUnauthorized)
			return
		}
		w.Write([]byte("oauth_token=access-token&oauth_token_secret=access-secret"))
	})
	mux.HandleFunc("/services/users/user", func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Authorization"), `oauth_token="access-token"`) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("fields") != "id|first_name|last_name" {
			http.Error(w, "bad fields", http.StatusBadRequest)
			return
		}
		if f.userStatus != 0 {
			w.WriteHeader(f.userStatus)
		}
		w.Write([]byte(f.userBody))
	})
	return mux
}

func setupUSOS(t *testing.T, fake *fakeUSOS) (*USOSClient, *StateStore, *httptest.Server) {
	t.Helper()
	database, cleanup := setupTestDB(t)
	t.Cleanup(cleanup)

	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	states := NewStateStore(database)
	client := NewUSOSClient(Config{
		BaseAddress:    srv.URL,
		ConsumerKey:    "consumer-key",
		ConsumerSecret: "consumer-secret",
	}, states)
	return client, states, srv
}

func TestBeginAuth(t *testing.T) {
	fake := &fakeUSOS{verifier: "good"}
	client, states, srv := setupUSOS(t, fake)
	ctx := context.Background()

	redirect, err := client.BeginAuth(ctx, "http://localhost:60000/login")
	require.NoError(t, err)

	u, err := url.Parse(redirect)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/services/oauth/authorize", u.Scheme+"://"+u.Host+u.Path)
	assert.Equal(t, "req-token", u.Query().Get("oauth_token"))

	rt, err := pendingToken(t, states, "req-token")
	require.NoError(t, err)
	assert.Equal(t, "req-secret", rt.Secret)
	assert.Equal(t, "http://localhost:60000/login", rt.CallbackURL)
}

func TestBeginAuthSendsScopes(t *testing.T) {
	fake := &fakeUSOS{verifier: "good"}
	database, cleanup := setupTestDB(t)
	defer cleanup()
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	client := NewUSOSClient(Config{
		BaseAddress:    srv.URL + "/",
		ConsumerKey:    "k",
		ConsumerSecret: "s",
		Scopes:         "studies|email",
	}, NewStateStore(database))

	_, err := client.BeginAuth(context.Background(), "http://localhost/login")
	require.NoError(t, err)
	assert.Equal(t, "studies|email", fake.lastScopes)
}

func TestBeginAuthUpstreamUnavailable(t *testing.T) {
	fake := &fakeUSOS{}
	client, _, srv := setupUSOS(t, fake)
	srv.Close()

	_, err := client.BeginAuth(context.Background(), "http://localhost/login")
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestCompleteAuth(t *testing.T) {
	fake := &fakeUSOS{
		verifier: "good",
		userBody: `{"id": "123456", "first_name": "Jan", "last_name": "Kowalski"}`,
	}
	client, states, _ := setupUSOS(t, fake)
	ctx := context.Background()

	_, err := client.BeginAuth(ctx, "http://localhost/login")
	require.NoError(t, err)

	profile, err := client.CompleteAuth(ctx, "req-token", "good")
	require.NoError(t, err)
	assert.Equal(t, "123456", profile.ID)
	assert.Equal(t, "Jan Kowalski", profile.DisplayName())

	// The request token is consumed
	_, err = pendingToken(t, states, "req-token")
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestCompleteAuthNumericID(t *testing.T) {
	fake := &fakeUSOS{
		verifier: "good",
		userBody: `{"id": 42, "first_name": "Anna", "last_name": ""}`,
	}
	client, _, _ := setupUSOS(t, fake)
	ctx := context.Background()

	_, err := client.BeginAuth(ctx, "http://localhost/login")
	require.NoError(t, err)

	profile, err := client.CompleteAuth(ctx, "req-token", "good")
	require.NoError(t, err)
	assert.Equal(t, "42", profile.ID)
	assert.Equal(t, "Anna", profile.DisplayName())
}

func TestCompleteAuthWrongVerifier(t *testing.T) {
	fake := &fakeUSOS{verifier: "good", userBody: `{"id": "1"}`}
	client, _, _ := setupUSOS(t, fake)
	ctx := context.Background()

	_, err := client.BeginAuth(ctx, "http://localhost/login")
	require.NoError(t, err)

	_, err = client.CompleteAuth(ctx, "req-token", "bad")
	assert.ErrorIs(t, err, ErrAuthorizationDenied)

	// A failed attempt burns the request token; the user must start over
	_, err = client.CompleteAuth(ctx, "req-token", "good")
	assert.ErrorIs(t, err, ErrAuthorizationDenied)
}

func TestCompleteAuthUnknownToken(t *testing.T) {
	fake := &fakeUSOS{verifier: "good"}
	client, _, _ := setupUSOS(t, fake)

	_, err := client.CompleteAuth(context.Background(), "never-issued", "good")
	assert.ErrorIs(t, err, ErrAuthorizationDenied)
}

func TestCompleteAuthMissingParams(t *testing.T) {
	client, _, _ := setupUSOS(t, &fakeUSOS{})

	_, err := client.CompleteAuth(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrAuthorizationDenied)
}

func TestCompleteAuthUpstreamUnavailable(t *testing.T) {
	fake := &fakeUSOS{verifier: "good"}
	client, states, srv := setupUSOS(t, fake)
	ctx := context.Background()

	require.NoError(t, states.Save(ctx, &RequestToken{Token: "req-token", Secret: "req-secret"}))
	srv.Close()

	_, err := client.CompleteAuth(ctx, "req-token", "good")
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

// stallingUSOS serves the fake provider but never answers requests for path.
func stallingUSOS(t *testing.T, fake *fakeUSOS, path string) (*USOSClient, *StateStore) {
	t.Helper()
	database, cleanup := setupTestDB(t)
	t.Cleanup(cleanup)

	release := make(chan struct{})
	next := fake.handler()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == path {
			select {
			case <-r.Context().Done():
			case <-release:
			}
			return
		}
		next.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	states := NewStateStore(database)
	client := NewUSOSClient(Config{
		BaseAddress:    srv.URL,
		ConsumerKey:    "consumer-key",
		ConsumerSecret: "consumer-secret",
		Timeout:        100 * time.Millisecond,
	}, states)
	return client, states
}

func TestProviderTimeouts(t *testing.T) {
	t.Run("request token", func(t *testing.T) {
		client, _ := stallingUSOS(t, &fakeUSOS{}, "/services/oauth/request_token")

		start := time.Now()
		_, err := client.BeginAuth(context.Background(), "http://localhost/login")
		assert.ErrorIs(t, err, ErrUpstreamUnavailable)
		assert.Less(t, time.Since(start), 5*time.Second)
	})

	t.Run("access token", func(t *testing.T) {
		client, states := stallingUSOS(t, &fakeUSOS{verifier: "good"}, "/services/oauth/access_token")
		ctx := context.Background()
		require.NoError(t, states.Save(ctx, &RequestToken{Token: "req-token", Secret: "req-secret"}))

		start := time.Now()
		_, err := client.CompleteAuth(ctx, "req-token", "good")
		assert.ErrorIs(t, err, ErrUpstreamUnavailable)
		assert.Less(t, time.Since(start), 5*time.Second)
	})

	t.Run("user profile", func(t *testing.T) {
		client, _ := stallingUSOS(t, &fakeUSOS{verifier: "good"}, "/services/users/user")
		ctx := context.Background()

		_, err := client.BeginAuth(ctx, "http://localhost/login")
		require.NoError(t, err)

		start := time.Now()
		_, err = client.CompleteAuth(ctx, "req-token", "good")
		assert.ErrorIs(t, err, ErrUpstreamUnavailable)
		assert.Less(t, time.Since(start), 5*time.Second)
	})
}

func TestBeginAuthStorageFailure(t *testing.T) {
	fake := &fakeUSOS{verifier: "good"}
	database, cleanup := setupTestDB(t)
	defer cleanup()
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	client := NewUSOSClient(Config{
		BaseAddress:    srv.URL,
		ConsumerKey:    "k",
		ConsumerSecret: "s",
	}, NewStateStore(database))
	database.Close()

	_, err := client.BeginAuth(context.Background(), "http://localhost/login")
	assert.ErrorIs(t, err, ErrStateStorage)
	assert.NotErrorIs(t, err, ErrUpstreamUnavailable)
	assert.Equal(t, 1, fake.requestCalls)
}

func TestCompleteAuthStorageFailure(t *testing.T) {
	client, _, _ := setupUSOS(t, &fakeUSOS{verifier: "good"})
	client.states.db.Close()

	_, err := client.CompleteAuth(context.Background(), "req-token", "good")
	assert.ErrorIs(t, err, ErrStateStorage)
	assert.NotErrorIs(t, err, ErrAuthorizationDenied)
}

func TestCompleteAuthProfileErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"server error", http.StatusInternalServerError, `oops`, ErrUpstreamUnavailable},
		{"malformed json", 0, `{`, ErrUpstreamUnavailable},
		{"missing id", 0, `{"first_name": "Jan"}`, ErrInvalidProfile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeUSOS{verifier: "good", userStatus: tt.status, userBody: tt.body}
			client, _, _ := setupUSOS(t, fake)
			ctx := context.Background()

			_, err := client.BeginAuth(ctx, "http://localhost/login")
			require.NoError(t, err)

			_, err = client.CompleteAuth(ctx, "req-token", "good")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestProfileDisplayName(t *testing.T) {
	assert.Equal(t, "Jan Kowalski", (&Profile{FirstName: " Jan ", LastName: "Kowalski"}).DisplayName())
	assert.Equal(t, "Kowalski", (&Profile{LastName: "Kowalski"}).DisplayName())
	assert.Equal(t, "", (&Profile{}).DisplayName())
}
