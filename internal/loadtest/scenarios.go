package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Scenario names a traffic shape.
type Scenario string

const (
	// ScenarioLogin storms the login endpoint with test-user credentials.
	ScenarioLogin Scenario = "login"
	// ScenarioChat sends authenticated questions through the RAG pipeline.
	ScenarioChat Scenario = "chat"
	// ScenarioAudit storms the admin audit query endpoint.
	ScenarioAudit Scenario = "audit"
	// ScenarioMixed interleaves the other three.
	ScenarioMixed Scenario = "mixed"
)

// ParseScenario validates a scenario name.
func ParseScenario(s string) (Scenario, error) {
	switch Scenario(s) {
	case ScenarioLogin, ScenarioChat, ScenarioAudit, ScenarioMixed:
		return Scenario(s), nil
	case "":
		return ScenarioMixed, nil
	}
	return "", fmt.Errorf("unknown scenario %q (login, chat, audit, mixed)", s)
}

// requester performs the seq-th request and returns the status code.
type requester func(ctx context.Context, seq int) (int, error)

// questions cycled through by the chat scenario.
var questions = []string{
	"How do I reset my password?",
	"Where is the deployment runbook?",
	"What is the vacation policy?",
	"How do I rotate the API keys?",
	"Who owns the billing service?",
}

func buildScenario(ctx context.Context, opts *Options) (requester, error) {
	switch opts.Scenario {
	case ScenarioLogin:
		return loginScenario(opts), nil
	case ScenarioChat:
		return chatScenario(ctx, opts)
	case ScenarioAudit:
		return auditScenario(ctx, opts)
	case ScenarioMixed:
		return mixedScenario(ctx, opts)
	}
	return nil, fmt.Errorf("unknown scenario %q", opts.Scenario)
}

func username(opts *Options, i int) string {
	return fmt.Sprintf("%s-%03d", opts.UserPrefix, i%opts.Users)
}

func loginScenario(opts *Options) requester {
	client := opts.client()
	url := opts.BaseURL + "/api/auth/login"
	return func(ctx context.Context, seq int) (int, error) {
		body, _ := json.Marshal(map[string]string{
			"username": username(opts, seq),
			"password": opts.Password,
		})
		return post(ctx, client, url, body, "")
	}
}

func chatScenario(ctx context.Context, opts *Options) (requester, error) {
	tokens, err := loginAll(ctx, opts)
	if err != nil {
		return nil, err
	}
	client := opts.client()
	url := opts.BaseURL + "/api/chat/"
	return func(ctx context.Context, seq int) (int, error) {
		body, _ := json.Marshal(map[string]string{
			"message": questions[seq%len(questions)],
		})
		return post(ctx, client, url, body, tokens[seq%len(tokens)])
	}, nil
}

func auditScenario(ctx context.Context, opts *Options) (requester, error) {
	if opts.AdminUsername == "" {
		return nil, fmt.Errorf("the audit scenario needs admin credentials")
	}
	token, err := login(ctx, opts, opts.AdminUsername, opts.AdminPassword)
	if err != nil {
		return nil, fmt.Errorf("admin login: %w", err)
	}
	client := opts.client()
	url := opts.BaseURL + "/api/admin/audit?limit=20"
	return func(ctx context.Context, seq int) (int, error) {
		return get(ctx, client, url, token)
	}, nil
}

func mixedScenario(ctx context.Context, opts *Options) (requester, error) {
	loginReq := loginScenario(opts)
	chatReq, err := chatScenario(ctx, opts)
	if err != nil {
		return nil, err
	}

	// The audit leg joins only when admin credentials are supplied.
	legs := []requester{loginReq, chatReq}
	if opts.AdminUsername != "" {
		auditReq, err := auditScenario(ctx, opts)
		if err != nil {
			return nil, err
		}
		legs = append(legs, auditReq)
	}

	return func(ctx context.Context, seq int) (int, error) {
		return legs[seq%len(legs)](ctx, seq)
	}, nil
}

// loginAll obtains a token for every test user up front so the chat
// scenario measures chat latency, not login latency.
func loginAll(ctx context.Context, opts *Options) ([]string, error) {
	tokens := make([]string, opts.Users)
	for i := 0; i < opts.Users; i++ {
		token, err := login(ctx, opts, username(opts, i), opts.Password)
		if err != nil {
			return nil, fmt.Errorf("logging in %s: %w", username(opts, i), err)
		}
		tokens[i] = token
	}
	return tokens, nil
}

func login(ctx context.Context, opts *Options, user, password string) (string, error) {
	body, _ := json.Marshal(map[string]string{"username": user, "password": password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, opts.BaseURL+"/api/auth/login", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := opts.client().Do(req)
	if err != nil {
		return "", fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login returned status %d", resp.StatusCode)
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding login response: %w", err)
	}
	if out.Token == "" {
		return "", fmt.Errorf("login response carried no token")
	}
	return out.Token, nil
}

func post(ctx context.Context, client *http.Client, url string, body []byte, token string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

func get(ctx context.Context, client *http.Client, url, token string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("building request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}
