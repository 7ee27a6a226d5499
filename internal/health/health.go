// Package health probes the services the voice server depends on. Checks
// are deliberately cheap: a config presence test plus one lightweight
// request per collaborator.
package health

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/deepak6009/khetsaathi-sub000/internal/config"
)

type CheckResult struct {
	Name    string        `json:"name"`
	OK      bool          `json:"ok"`
	Latency time.Duration `json:"latency_ms"`
	Error   string        `json:"error,omitempty"`
}

type HealthStatus struct {
	OK        bool          `json:"ok"`
	Checks    []CheckResult `json:"checks"`
	CheckedAt time.Time     `json:"checked_at"`
}

func (h HealthStatus) String() string {
	status := "OK"
	if !h.OK {
		status = "FAIL"
	}
	s := fmt.Sprintf("Health: %s\n", status)
	for _, c := range h.Checks {
		mark := "✓"
		if !c.OK {
			mark = "✗"
		}
		s += fmt.Sprintf("  %s %s (%dms)", mark, c.Name, c.Latency.Milliseconds())
		if c.Error != "" {
			s += fmt.Sprintf(" - %s", c.Error)
		}
		s += "\n"
	}
	return s
}

// CheckAll runs every dependency check and returns the combined status.
// Optional collaborators (diagnosis API, PDF service) are skipped when not
// configured rather than reported as failures.
func CheckAll(ctx context.Context, cfg config.Config, db *sql.DB) HealthStatus {
	checks := []CheckResult{
		checkGemini(ctx, cfg),
		checkCaseDB(ctx, db),
	}
	if cfg.Diagnosis.BaseURL != "" {
		checks = append(checks, checkEndpoint(ctx, "diagnosis", cfg.Diagnosis.BaseURL))
	}
	if cfg.PDF.ServiceURL != "" {
		checks = append(checks, checkEndpoint(ctx, "pdf", cfg.PDF.ServiceURL))
	}

	allOK := true
	for _, c := range checks {
		if !c.OK {
			allOK = false
		}
	}

	return HealthStatus{
		OK:        allOK,
		Checks:    checks,
		CheckedAt: time.Now().UTC(),
	}
}

func checkGemini(ctx context.Context, cfg config.Config) CheckResult {
	start := time.Now()
	result := CheckResult{Name: "gemini"}

	if cfg.Gemini.APIKey == "" {
		result.Error = "GEMINI_API_KEY not set"
		result.Latency = time.Since(start)
		return result
	}

	url := "https://generativelanguage.googleapis.com/v1beta/models?pageSize=1&key=" + cfg.Gemini.APIKey
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		result.Error = fmt.Sprintf("request build failed: %v", err)
		result.Latency = time.Since(start)
		return result
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		result.Error = fmt.Sprintf("request failed: %v", err)
		result.Latency = time.Since(start)
		return result
	}
	defer resp.Body.Close()

	result.Latency = time.Since(start)

	if resp.StatusCode == 400 || resp.StatusCode == 401 || resp.StatusCode == 403 {
		result.Error = fmt.Sprintf("invalid API key (%d)", resp.StatusCode)
		return result
	}
	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		result.Error = fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(body))
		return result
	}

	result.OK = true
	return result
}

func checkCaseDB(ctx context.Context, db *sql.DB) CheckResult {
	start := time.Now()
	result := CheckResult{Name: "casedb"}

	if db == nil {
		result.Error = "database not initialized"
		result.Latency = time.Since(start)
		return result
	}
	if err := db.PingContext(ctx); err != nil {
		result.Error = fmt.Sprintf("ping failed: %v", err)
		result.Latency = time.Since(start)
		return result
	}

	result.Latency = time.Since(start)
	result.OK = true
	return result
}

// checkEndpoint confirms an HTTP collaborator answers at all. Any response,
// including 404 for the bare base URL, proves the service is up.
func checkEndpoint(ctx context.Context, name, baseURL string) CheckResult {
	start := time.Now()
	result := CheckResult{Name: name}

	req, err := http.NewRequestWithContext(ctx, "GET", baseURL, nil)
	if err != nil {
		result.Error = fmt.Sprintf("request build failed: %v", err)
		result.Latency = time.Since(start)
		return result
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		result.Error = fmt.Sprintf("request failed: %v", err)
		result.Latency = time.Since(start)
		return result
	}
	resp.Body.Close()

	result.Latency = time.Since(start)
	result.OK = true
	return result
}
