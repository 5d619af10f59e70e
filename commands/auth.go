package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/context"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// authorize returns an HTTP client for the Google Sheets API. Service account
// credentials are used directly; OAuth2 client credentials use a cached token
// in the tokens directory, prompting for an authorisation code on first use.
func authorize(ctx context.Context, credentials, scope, tokens string) (*http.Client, error) {
	b, err := os.ReadFile(credentials)
	if err != nil {
		return nil, err
	}

	var kind struct {
		Type string `json:"type"`
	}

	if err := json.Unmarshal(b, &kind); err != nil {
		return nil, fmt.Errorf("invalid credentials file %s (%w)", credentials, err)
	}

	if kind.Type == "service_account" {
		config, err := google.JWTConfigFromJSON(b, scope)
		if err != nil {
			return nil, err
		}

		return config.Client(ctx), nil
	}

	config, err := google.ConfigFromJSON(b, scope)
	if err != nil {
		return nil, err
	}

	file := tokenFile(credentials, scope, tokens)

	token, err := tokenFromFile(file)
	if err != nil {
		if token, err = getTokenFromWeb(ctx, config); err != nil {
			return nil, err
		}

		if err := saveToken(file, token); err != nil {
			warnf("unable to cache OAuth token (%v)", err)
		}
	}

	return config.Client(ctx, token), nil
}

func tokenFile(credentials, scope, tokens string) string {
	_, file := filepath.Split(credentials)
	name := strings.TrimSuffix(file, filepath.Ext(file))

	switch scope {
	case SHEETS:
		return filepath.Join(tokens, fmt.Sprintf("%s.sheets", name))

	case SHEETS_READONLY:
		return filepath.Join(tokens, fmt.Sprintf("%s.sheets.readonly", name))

	default:
		return filepath.Join(tokens, fmt.Sprintf("%s.tokens", name))
	}
}

// Request a token from the web, then returns the retrieved token.
func getTokenFromWeb(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)

	fmt.Printf("Go to the following link in your browser then type the authorization code: \n%v\n", authURL)

	var code string
	if _, err := fmt.Scan(&code); err != nil {
		return nil, fmt.Errorf("unable to read authorization code (%w)", err)
	}

	token, err := config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve token from web (%w)", err)
	}

	return token, nil
}

// Retrieves a token from a local file.
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}

	defer f.Close()

	token := oauth2.Token{}
	if err := json.NewDecoder(f).Decode(&token); err != nil {
		return nil, err
	}

	return &token, nil
}

// Saves a token to a file path.
func saveToken(path string, token *oauth2.Token) error {
	infof("Saving credential file to: %s", path)

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}

	defer f.Close()

	return json.NewEncoder(f).Encode(token)
}
