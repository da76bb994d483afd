package drift

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/charmbracelet/log"
	"github.com/pkg/browser"
)

// Login authenticates against the provider. An already-valid cached token
// short-circuits; otherwise a browser window is opened on the provider's
// login page and the CLI polls until the token is issued, then persists it.
// Returns the provider's info about the logged in user.
func Login(ctx context.Context, client *Client, state *State) (map[string]any, error) {
	if state.AccessToken != "" {
		client.SetToken(state.AccessToken)

		info, err := client.ValidateToken(ctx)

		if err == nil {
			log.Info("Already logged in")

			return info, nil
		}

		if !errors.Is(err, ErrNotAuthenticated) {
			return nil, err
		}

		// Stale token, fall through to a fresh browser login
		state.AccessToken = ""
	}

	req, err := client.BeginLogin(ctx)

	if err != nil {
		return nil, err
	}

	fmt.Printf("Opening %s in your browser...\n", req.URL)

	if err := browser.OpenURL(req.URL); err != nil {
		log.Warn("Could not open a browser, visit the URL manually", "url", req.URL)
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " Waiting for browser login..."
	s.Start()

	token, err := client.PollToken(ctx, req.ID, 2*time.Second)

	s.Stop()

	if err != nil {
		return nil, fmt.Errorf("waiting for login: %w", err)
	}

	client.SetToken(token)

	info, err := client.ValidateToken(ctx)

	if err != nil {
		return nil, err
	}

	state.AccessToken = token

	if err := state.Save(); err != nil {
		return nil, err
	}

	log.Info("Successfully logged in")

	return info, nil
}

// Logout discards the cached access token.
func Logout(state *State) error {
	log.Debug("Deleting access token from local state")

	state.AccessToken = ""

	return state.Save()
}
