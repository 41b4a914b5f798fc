package hcaptcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ManuelReschke/stripe-billing/internal/pkg/env"
)

const defaultVerifyURL = "https://hcaptcha.com/siteverify"

var ErrEmptyToken = errors.New("hCaptcha token is empty")

type Response struct {
	Success     bool     `json:"success"`
	ChallengeTS string   `json:"challenge_ts"`
	Hostname    string   `json:"hostname"`
	ErrorCodes  []string `json:"error-codes"`
}

// Verifier checks hCaptcha response tokens against the siteverify API.
type Verifier struct {
	SiteKey   string
	secret    string
	verifyURL string
	client    *http.Client
}

// New returns a verifier for secret. verifyURL may be empty for the public API.
func New(siteKey, secret, verifyURL string) *Verifier {
	if verifyURL == "" {
		verifyURL = defaultVerifyURL
	}
	return &Verifier{
		SiteKey:   siteKey,
		secret:    secret,
		verifyURL: verifyURL,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// FromEnv returns nil when HCAPTCHA_SECRET is not set, which disables the check.
func FromEnv() *Verifier {
	secret := env.GetEnv("HCAPTCHA_SECRET", "")
	if secret == "" {
		return nil
	}
	return New(env.GetEnv("HCAPTCHA_SITEKEY", ""), secret, "")
}

func (v *Verifier) Verify(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, ErrEmptyToken
	}

	formData := url.Values{
		"secret":   {v.secret},
		"response": {token},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(formData.Encode()))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to send request to hCaptcha API: %w", err)
	}
	defer resp.Body.Close()

	var response Response
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return false, fmt.Errorf("failed to decode hCaptcha API response: %w", err)
	}

	if !response.Success {
		errorMsg := "hCaptcha validation failed"
		if len(response.ErrorCodes) > 0 {
			errorMsg = errorMsg + ": " + strings.Join(response.ErrorCodes, ", ")
		}
		return false, errors.New(errorMsg)
	}

	return true, nil
}
