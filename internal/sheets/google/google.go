// Package google reads import rows from a Google Sheets range.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	ports "orcamento/internal/sheets"
)

var _ ports.RowReader = (*Client)(nil)

// Client reads one range of one spreadsheet.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	readRange     string
}

// Options configures New. Credentials are a service account key, given
// inline or as a file path, or an OAuth client secret plus the token saved
// by cmd/oauth-init. The token wins when both are set.
type Options struct {
	SpreadsheetID      string
	Range              string
	ServiceAccountJSON string
	ServiceAccountFile string

	OAuthClientJSON string
	OAuthClientFile string
	OAuthTokenFile  string
}

func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}

	var auth goption.ClientOption
	if strings.TrimSpace(opts.OAuthTokenFile) != "" {
		ts, err := userTokenSource(ctx, opts)
		if err != nil {
			return nil, err
		}
		auth = goption.WithTokenSource(ts)
	} else {
		creds, err := loadCredentials(ctx, opts.ServiceAccountJSON, opts.ServiceAccountFile)
		if err != nil {
			return nil, err
		}
		auth = goption.WithCredentialsJSON(creds)
	}

	svc, err := gsheet.NewService(ctx, auth, goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, opts.SpreadsheetID, opts.Range), nil
}

// NewWithService wraps an already configured Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, readRange string) *Client {
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		readRange:     ResolveRange(readRange, time.Now().Year()),
	}
}

// NewServiceForEndpoint builds an unauthenticated service against endpoint,
// for local emulators and tests.
func NewServiceForEndpoint(ctx context.Context, endpoint string) (*gsheet.Service, error) {
	return gsheet.NewService(ctx,
		goption.WithHTTPClient(newHTTPClientWithPooling()),
		goption.WithEndpoint(endpoint))
}

func loadCredentials(ctx context.Context, inline, file string) ([]byte, error) {
	inline = strings.TrimSpace(inline)
	file = strings.TrimSpace(file)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		slog.InfoContext(ctx, "Using inline service account credentials")
		return []byte(inline), nil
	case file != "":
		slog.InfoContext(ctx, "Reading service account credentials", "path", file)
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// newHTTPClientWithPooling keeps connections to the Sheets API alive
// between reads and bounds every request.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

// ReadRows implements sheets.RowReader.
func (c *Client) ReadRows(ctx context.Context) ([][]string, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.readRange).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.readRange, err)
	}

	rows := normalizeRows(resp.Values)
	slog.InfoContext(ctx, "Read spreadsheet range",
		"range", c.readRange,
		"rows", len(rows))
	return rows, nil
}

// Range returns the resolved A1 range being read.
func (c *Client) Range() string {
	return c.readRange
}

// ResolveRange replaces a "{year}" placeholder in an A1 range, so yearly
// tabs like "2025 Gastos!A:F" can be configured once.
func ResolveRange(rng string, year int) string {
	return strings.ReplaceAll(strings.TrimSpace(rng), "{year}", strconv.Itoa(year))
}
