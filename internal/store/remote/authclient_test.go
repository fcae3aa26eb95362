package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_SignIn_Success(t *testing.T) {
	req := require.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req.Equal("/token", r.URL.Path)
		req.Equal("password", r.URL.Query().Get("grant_type"))
		req.Equal("key-1", r.Header.Get("apikey"))

		var body credentialsBody
		req.NoError(json.NewDecoder(r.Body).Decode(&body))
		req.Equal("alice@res.com", body.Email)

		_ = json.NewEncoder(w).Encode(ProviderSession{
			AccessToken: "tok-abc",
			Identity:    Identity{ID: "uid-1", Email: body.Email},
		})
	}))
	defer srv.Close()

	cli := NewAuthClient(srv.URL, "key-1")
	session, err := cli.SignIn(context.Background(), "alice@res.com", "password")
	req.NoError(err)
	req.Equal("tok-abc", session.AccessToken)
	req.Equal("uid-1", session.Identity.ID)
}

func Test_SignIn_Invalid_Credentials(t *testing.T) {
	req := require.New(t)

	for _, status := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusUnprocessableEntity} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		}))
		cli := NewAuthClient(srv.URL, "key-1")
		_, err := cli.SignIn(context.Background(), "alice@res.com", "wrong")
		req.ErrorIs(err, ErrInvalidCredentials)
		srv.Close()
	}
}

func Test_SignIn_Provider_Failure_Is_Not_Credential_Error(t *testing.T) {
	req := require.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cli := NewAuthClient(srv.URL, "key-1")
	_, err := cli.SignIn(context.Background(), "alice@res.com", "password")
	req.Error(err)
	req.NotErrorIs(err, ErrInvalidCredentials)
}

func Test_SignIn_Rejects_Session_Without_Identity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"tok"}`))
	}))
	defer srv.Close()

	cli := NewAuthClient(srv.URL, "key-1")
	_, err := cli.SignIn(context.Background(), "alice@res.com", "password")
	require.Error(t, err)
}

func Test_SignOut_Sends_Bearer_Token(t *testing.T) {
	req := require.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req.Equal("/logout", r.URL.Path)
		req.Equal("Bearer tok-abc", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cli := NewAuthClient(srv.URL, "key-1")
	req.NoError(cli.SignOut(context.Background(), "tok-abc"))
}
