package pdf

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Renderer turns plan text into a stored PDF and returns its public URL path.
type Renderer interface {
	Render(ctx context.Context, planText, language string) (string, error)
}

// HTTPRenderer posts plan text to an external render service and writes the
// returned PDF under outputDir. The returned value is the URL path
// ("/plans/<file>.pdf") to be joined with the server base URL.
type HTTPRenderer struct {
	http      *http.Client
	base      string
	outputDir string
}

func NewRenderer(serviceURL, outputDir string, timeout time.Duration) *HTTPRenderer {
	return &HTTPRenderer{
		http:      &http.Client{Timeout: timeout},
		base:      serviceURL,
		outputDir: outputDir,
	}
}

func (r *HTTPRenderer) Render(ctx context.Context, planText, language string) (string, error) {
	body := map[string]any{
		"text":     planText,
		"language": language,
	}
	var out bytes.Buffer
	if err := json.NewEncoder(&out).Encode(body); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", r.base+"/render", &out)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("pdf Render: %s: %s", resp.Status, string(b))
	}
	pdfBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if len(pdfBytes) == 0 {
		return "", fmt.Errorf("pdf Render: empty response")
	}

	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return "", err
	}
	name := "plan-" + uuid.NewString() + ".pdf"
	if err := os.WriteFile(filepath.Join(r.outputDir, name), pdfBytes, 0o644); err != nil {
		return "", err
	}
	return "/plans/" + name, nil
}
