package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

var httpClient = &http.Client{Timeout: 10 * time.Second}

// resolveToken returns the session token, logging in with the identity
// flags when none was supplied directly.
func (o *rootOptions) resolveToken(ctx context.Context) (string, error) {
	if o.token != "" {
		return o.token, nil
	}
	if o.email == "" || o.name == "" {
		return "", fmt.Errorf("either --token or both --email and --name are required")
	}

	body, _ := json.Marshal(map[string]string{
		"email": o.email,
		"name":  o.name,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.server+"/api/auth/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login: %s", readAPIError(resp))
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("login: decode response: %w", err)
	}
	return out.Token, nil
}

// createRoom asks the server for a fresh room and returns its code.
func (o *rootOptions) createRoom(ctx context.Context, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.server+"/api/rooms", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("create room: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("create room: %s", readAPIError(resp))
	}

	var out struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("create room: decode response: %w", err)
	}
	return out.Code, nil
}

func readAPIError(resp *http.Response) string {
	var apiErr struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
		return apiErr.Error
	}
	return resp.Status
}
