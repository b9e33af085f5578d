package records

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func authHandler(t *testing.T, loginCount, refreshCount *int) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			*loginCount++
			json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token":  "access-1",
				"refresh_token": "refresh-1",
				"expires_in":    3600,
				"token_type":    "Bearer",
			})
		case "/auth/refresh-token":
			*refreshCount++
			json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token":  "access-2",
				"refresh_token": "refresh-2",
				"expires_in":    3600,
				"token_type":    "Bearer",
			})
		default:
			t.Errorf("Unexpected auth path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func TestClientLogin(t *testing.T) {
	var logins, refreshes int
	var captured map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/login" {
			json.NewDecoder(r.Body).Decode(&captured)
		}
		authHandler(t, &logins, &refreshes)(w, r)
	}))
	defer server.Close()

	c := NewClient(Credentials{
		ClientID:     "cid",
		ClientSecret: "secret",
		Username:     "doc",
		Password:     "pw",
	}, WithBaseURL(server.URL))

	if err := c.Login(context.Background()); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if captured["client_id"] != "cid" || captured["username"] != "doc" {
		t.Errorf("Unexpected login payload: %v", captured)
	}

	tok := c.Token()
	if tok == nil || tok.AccessToken != "access-1" {
		t.Fatalf("Unexpected token: %+v", tok)
	}
	if time.Until(tok.Expiry) < 55*time.Minute {
		t.Errorf("Expiry not set from expires_in: %v", tok.Expiry)
	}
}

func TestEnsureAuthenticatedRefreshMargin(t *testing.T) {
	var logins, refreshes int
	server := httptest.NewServer(authHandler(t, &logins, &refreshes))
	defer server.Close()

	c := NewClient(Credentials{ClientID: "cid", ClientSecret: "s"}, WithBaseURL(server.URL))

	// Token expiring in 2 minutes is inside the 5-minute margin.
	c.SetToken(&oauth2.Token{
		AccessToken:  "stale",
		RefreshToken: "refresh-0",
		Expiry:       time.Now().Add(2 * time.Minute),
	})

	if err := c.EnsureAuthenticated(context.Background()); err != nil {
		t.Fatalf("EnsureAuthenticated failed: %v", err)
	}
	if refreshes != 1 {
		t.Errorf("Expected 1 refresh, got %d", refreshes)
	}
	if logins != 0 {
		t.Errorf("Expected no login, got %d", logins)
	}
	if c.Token().AccessToken != "access-2" {
		t.Errorf("Token not rotated: %s", c.Token().AccessToken)
	}

	// A fresh token needs no round trip.
	before := refreshes
	if err := c.EnsureAuthenticated(context.Background()); err != nil {
		t.Fatalf("EnsureAuthenticated failed: %v", err)
	}
	if refreshes != before {
		t.Error("Fresh token should not trigger refresh")
	}
}

func TestRefreshFallsBackToLogin(t *testing.T) {
	var logins int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/refresh-token":
			w.WriteHeader(http.StatusBadRequest)
		case "/auth/login":
			logins++
			json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token": "fresh",
				"expires_in":   3600,
				"token_type":   "Bearer",
			})
		}
	}))
	defer server.Close()

	c := NewClient(Credentials{ClientID: "cid", ClientSecret: "s"}, WithBaseURL(server.URL))
	c.SetToken(&oauth2.Token{AccessToken: "old", RefreshToken: "r", Expiry: time.Now()})

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh should fall back to login: %v", err)
	}
	if logins != 1 {
		t.Errorf("Expected 1 login fallback, got %d", logins)
	}
	if c.Token().AccessToken != "fresh" {
		t.Errorf("Unexpected token after fallback: %s", c.Token().AccessToken)
	}
}

func TestRequestRetriesOnceAfter401(t *testing.T) {
	var patientCalls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/refresh-token", "/auth/login":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token": "renewed",
				"expires_in":   3600,
				"token_type":   "Bearer",
			})
		case "/patients/PT-1001":
			patientCalls++
			if r.Header.Get("Authorization") != "Bearer renewed" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"name": "Sarah Chen"})
		default:
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	c := NewClient(Credentials{ClientID: "cid", ClientSecret: "s"}, WithBaseURL(server.URL))
	c.SetToken(&oauth2.Token{
		AccessToken:  "revoked",
		RefreshToken: "r",
		Expiry:       time.Now().Add(time.Hour),
	})

	result, err := c.GetPatientByID(context.Background(), "PT-1001")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if result["name"] != "Sarah Chen" {
		t.Errorf("Unexpected result: %v", result)
	}
	if patientCalls != 2 {
		t.Errorf("Expected exactly one retry (2 calls), got %d", patientCalls)
	}
}

func TestRequestSurfacesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/login" {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token": "a", "expires_in": 3600, "token_type": "Bearer",
			})
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewClient(Credentials{ClientID: "cid", ClientSecret: "s"}, WithBaseURL(server.URL))
	if _, err := c.GetPatientByID(context.Background(), "PT-1"); err == nil {
		t.Fatal("Expected error on 500")
	}
}

func TestRescheduleRequiresID(t *testing.T) {
	c := NewClient(Credentials{})
	if _, err := c.RescheduleAppointment(context.Background(), "", nil); err == nil {
		t.Fatal("Expected error for missing appointment id")
	}
}
