// Package googleauth loads stored OAuth credentials for the Gmail and Sheets
// clients. Interactive consent flows are out of scope: a missing or invalid
// token is a setup failure reported before any message is touched.
package googleauth

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Scopes required by the pipeline: read and label mail, append to sheets.
func Scopes() []string {
	return []string{
		gmail.GmailReadonlyScope,
		gmail.GmailModifyScope,
		sheets.SpreadsheetsScope,
	}
}

// FromTokenFile loads an authorized-user credential saved per account
// (token_<account>.json) and returns a client option for the API services.
func FromTokenFile(ctx context.Context, path string) (option.ClientOption, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("googleauth: read token file %s: %w", path, err)
	}
	return fromJSON(ctx, data)
}

// FromJSON parses an authorized-user credential held in memory, typically
// the GOOGLE_CREDENTIALS_JSON environment variable on serverless deployments.
func FromJSON(ctx context.Context, raw string) (option.ClientOption, error) {
	if raw == "" {
		return nil, fmt.Errorf("googleauth: empty credentials JSON")
	}
	return fromJSON(ctx, []byte(raw))
}

func fromJSON(ctx context.Context, data []byte) (option.ClientOption, error) {
	creds, err := google.CredentialsFromJSON(ctx, data, Scopes()...)
	if err != nil {
		return nil, fmt.Errorf("googleauth: parse credentials: %w", err)
	}
	return option.WithCredentials(creds), nil
}
