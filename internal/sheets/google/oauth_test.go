package google

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/oauth2"
)

const testClientJSON = `{"installed":{"client_id":"test","client_secret":"test","redirect_uris":["http://localhost"],"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token"}}`

func TestOAuthConfig(t *testing.T) {
	cfg, err := OAuthConfig([]byte(testClientJSON))
	if err != nil {
		t.Fatalf("OAuthConfig() error = %v", err)
	}
	if cfg.ClientID != "test" {
		t.Errorf("ClientID = %q", cfg.ClientID)
	}

	if _, err := OAuthConfig([]byte("invalid-json")); err == nil || !strings.Contains(err.Error(), "oauth config") {
		t.Errorf("OAuthConfig(invalid) error = %v", err)
	}
}

func TestLoadOAuthClient(t *testing.T) {
	if _, err := LoadOAuthClient("", ""); err == nil || !strings.Contains(err.Error(), "missing oauth client") {
		t.Fatalf("error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "client.json")
	if err := os.WriteFile(path, []byte(testClientJSON), 0o600); err != nil {
		t.Fatal(err)
	}
	b, err := LoadOAuthClient("", path)
	if err != nil || string(b) != testClientJSON {
		t.Fatalf("LoadOAuthClient(file) = %q, %v", b, err)
	}
	if b, _ := LoadOAuthClient(" {} ", path); string(b) != "{}" {
		t.Errorf("inline secret should win, got %q", b)
	}
}

func TestSaveAndLoadToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	if err := SaveToken(path, &oauth2.Token{AccessToken: "test", RefreshToken: "refresh", TokenType: "Bearer"}); err != nil {
		t.Fatalf("SaveToken() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("token file mode = %v, want 0600", info.Mode().Perm())
	}

	tok, err := LoadToken(path)
	if err != nil {
		t.Fatalf("LoadToken() error = %v", err)
	}
	if tok.AccessToken != "test" || tok.RefreshToken != "refresh" {
		t.Errorf("token = %+v", tok)
	}
}

func TestLoadTokenErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadToken(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing token file")
	}

	empty := filepath.Join(dir, "empty.json")
	if err := os.WriteFile(empty, []byte(`{"token_type":"Bearer"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadToken(empty); err == nil {
		t.Error("expected error for token without access or refresh token")
	}

	broken := filepath.Join(dir, "broken.json")
	if err := os.WriteFile(broken, []byte(`{"access_token":`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadToken(broken); err == nil || !strings.Contains(err.Error(), "decode") {
		t.Errorf("LoadToken(broken) error = %v", err)
	}
}

func TestNewWithOAuthToken(t *testing.T) {
	dir := t.TempDir()
	tokenPath := filepath.Join(dir, "token.json")
	if err := SaveToken(tokenPath, &oauth2.Token{AccessToken: "test", TokenType: "Bearer"}); err != nil {
		t.Fatal(err)
	}

	c, err := New(context.Background(), Options{
		SpreadsheetID:   "sheet-1",
		Range:           "Gastos {year}!A:F",
		OAuthClientJSON: testClientJSON,
		OAuthTokenFile:  tokenPath,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if strings.Contains(c.Range(), "{year}") {
		t.Errorf("Range() = %q, placeholder not resolved", c.Range())
	}

	_, err = New(context.Background(), Options{
		SpreadsheetID:  "sheet-1",
		Range:          "A:F",
		OAuthTokenFile: tokenPath,
	})
	if err == nil || !strings.Contains(err.Error(), "missing oauth client") {
		t.Errorf("New() without client error = %v", err)
	}
}
