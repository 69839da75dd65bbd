// Package accountserver is the HTTPS JSON client for the credential
// server (spec.md §6): account creation, login, and recovery
// authentication. It implements internal/accountstore.ServerNotifier.
package accountserver

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/airbitz-style/walletcore/internal/walleterr"
)

// Client talks to one credential server base URL.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: 30 * time.Second}}
}

// LoginPackage is the server's response to a successful login or recovery
// attempt (spec.md §6).
type LoginPackage struct {
	RepoAcctKey  string `json:"repoAcctKey"`
	ERepoAcctKey string `json:"eRepoAcctKey"`
	CarePackage  []byte `json:"carePackage,omitempty"`
}

type createRequest struct {
	L1           string `json:"L1"`
	P1           string `json:"P1"`
	LRA1         string `json:"LRA1"`
	CarePackage  string `json:"CarePackage"`
	RepoAcctKey  string `json:"RepoAcctKey"`
	ERepoAcctKey string `json:"ERepoAcctKey"`
}

// NotifyCreate calls POST /account/create (spec.md §6).
func (c *Client) NotifyCreate(ctx context.Context, l1, p1, lra1, carePackage []byte) error {
	req := createRequest{
		L1:          hex.EncodeToString(l1),
		P1:          hex.EncodeToString(p1),
		LRA1:        hex.EncodeToString(lra1),
		CarePackage: string(carePackage),
	}
	return c.post(ctx, "/account/create", req, nil)
}

type loginRequest struct {
	L1 string `json:"L1"`
	P1 string `json:"P1"`
}

// Login calls POST /account/login (spec.md §6).
func (c *Client) Login(ctx context.Context, l1, p1 []byte) (LoginPackage, error) {
	var resp LoginPackage
	req := loginRequest{L1: hex.EncodeToString(l1), P1: hex.EncodeToString(p1)}
	if err := c.post(ctx, "/account/login", req, &resp); err != nil {
		return LoginPackage{}, err
	}
	return resp, nil
}

// NotifyPasswordChange re-authenticates with the server after a password
// change by logging in again under the new P1; spec.md §6 does not name a
// distinct password-change endpoint, so this reuses /account/login, which
// is what re-establishes the server-side authenticator (spec.md §4.3).
func (c *Client) NotifyPasswordChange(ctx context.Context, l1, newP1 []byte) error {
	_, err := c.Login(ctx, l1, newP1)
	return err
}

type recoveryRequest struct {
	L1   string `json:"L1"`
	LRA1 string `json:"LRA1"`
}

// Recovery calls POST /account/recovery (spec.md §6).
func (c *Client) Recovery(ctx context.Context, l1, lra1 []byte) (LoginPackage, error) {
	var resp LoginPackage
	req := recoveryRequest{L1: hex.EncodeToString(l1), LRA1: hex.EncodeToString(lra1)}
	if err := c.post(ctx, "/account/recovery", req, &resp); err != nil {
		return LoginPackage{}, err
	}
	return resp, nil
}

// NotifyRecoverySet tells the server about the new LRA1 produced by
// SetRecovery, via the same /account/recovery authentication path.
func (c *Client) NotifyRecoverySet(ctx context.Context, l1, newLRA1 []byte) error {
	_, err := c.Recovery(ctx, l1, newLRA1)
	return err
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return walleterr.Wrap(walleterr.KindJSON, "encode credential server request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return walleterr.Wrap(walleterr.KindNetwork, "build credential server request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return walleterr.Wrap(walleterr.KindNetwork, "call credential server", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return walleterr.New(walleterr.KindServer, fmt.Sprintf("credential server returned status %d for %s", resp.StatusCode, path))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return walleterr.Wrap(walleterr.KindJSON, "decode credential server response", err)
	}
	return nil
}
