package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"orcamento/internal/cli"
	"orcamento/internal/config"
	"orcamento/internal/log"
	gsheet "orcamento/internal/sheets/google"
)

var (
	flagPort      string
	flagTokenFile string
	flagTimeout   time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "oauth-init",
	Short: "Authorize spreadsheet import with a Google account",
	Long: "Runs the OAuth consent flow for the client in GOOGLE_OAUTH_CLIENT_JSON or " +
		"GOOGLE_OAUTH_CLIENT_FILE and saves the token for GOOGLE_OAUTH_TOKEN_FILE. " +
		"Add http://localhost:<port>/callback to the client's redirect URIs.",
	SilenceUsage: true,
	RunE:         runAuthorize,
}

func init() {
	rootCmd.Flags().StringVar(&flagPort, "port", envOr("OAUTH_REDIRECT_PORT", "8085"), "Local port for the OAuth redirect")
	rootCmd.Flags().StringVar(&flagTokenFile, "token-file", "", "Where to save the token (default: GOOGLE_OAUTH_TOKEN_FILE or token.json)")
	rootCmd.Flags().DurationVar(&flagTimeout, "timeout", 5*time.Minute, "How long to wait for authorization")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runAuthorize(cmd *cobra.Command, _ []string) error {
	cli.LoadEnvFile()
	cfg := config.Load()
	logger := cli.SetupLogger(cfg, log.ComponentSheets, cmd.ErrOrStderr())

	clientJSON, err := gsheet.LoadOAuthClient(cfg.GoogleOAuthClientJSON, cfg.GoogleOAuthClientFile)
	if err != nil {
		return err
	}
	oauthCfg, err := gsheet.OAuthConfig(clientJSON)
	if err != nil {
		return err
	}
	oauthCfg.RedirectURL = "http://localhost:" + flagPort + "/callback"

	tokenFile := flagTokenFile
	if tokenFile == "" {
		tokenFile = cfg.GoogleOAuthTokenFile
	}
	if tokenFile == "" {
		tokenFile = "token.json"
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, flagTimeout)
	defer cancel()

	state := uuid.NewString()
	code, err := awaitCode(ctx, logger, oauthCfg, state)
	if err != nil {
		return err
	}

	tok, err := oauthCfg.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("token exchange: %w", err)
	}
	if err := gsheet.SaveToken(tokenFile, tok); err != nil {
		return err
	}
	logger.Info("Saved OAuth token", "path", tokenFile)
	fmt.Fprintf(cmd.OutOrStdout(), "Saved token to %s\n", tokenFile)
	return nil
}

// awaitCode serves the redirect endpoint until the consent page calls back
// with a code for state, or ctx ends.
func awaitCode(ctx context.Context, logger *log.Logger, oauthCfg *oauth2.Config, state string) (string, error) {
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if e := q.Get("error"); e != "" {
			http.Error(w, "OAuth error: "+e, http.StatusBadRequest)
			select {
			case errCh <- fmt.Errorf("authorization denied: %s", e):
			default:
			}
			return
		}
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "Autorização concluída. Pode fechar esta janela.")
		select {
		case codeCh <- q.Get("code"):
		default:
		}
	})

	srv := &http.Server{
		Addr:              ":" + flagPort,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("callback server: %w", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	url := oauthCfg.AuthCodeURL(state, oauth2.AccessTypeOffline)
	logger.Info("Waiting for authorization", "redirect_url", oauthCfg.RedirectURL)
	fmt.Printf("Open this URL to authorize:\n%s\n", url)

	select {
	case code := <-codeCh:
		return code, nil
	case err := <-errCh:
		return "", err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", errors.New("authorization timed out")
		}
		return "", errors.New("interrupted")
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
