package diagnosis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/deepak6009/khetsaathi-sub000/internal/types"
)

// Client calls the external crop-diagnosis service.
type Client interface {
	Diagnose(ctx context.Context, imageURLs []string, crop, location, language string) (*types.Diagnosis, error)
}

type HTTPClient struct {
	http   *http.Client
	apiKey string
	base   string
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		http:   &http.Client{Timeout: timeout},
		apiKey: apiKey,
		base:   baseURL,
	}
}

func (c *HTTPClient) Diagnose(ctx context.Context, imageURLs []string, crop, location, language string) (*types.Diagnosis, error) {
	body := map[string]any{
		"imageUrls": imageURLs,
		"crop":      crop,
		"location":  location,
		"language":  language,
	}
	var out bytes.Buffer
	if err := json.NewEncoder(&out).Encode(body); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.base+"/diagnose", &out)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("diagnosis Diagnose: %s: %s", resp.Status, string(b))
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return Normalize(raw)
}

// rawRecord tolerates both snake_case and camelCase field naming from the
// service. Missing fields stay zero rather than erroring.
type rawRecord struct {
	Disease          string   `json:"disease"`
	DiseaseName      string   `json:"disease_name"`
	Severity         string   `json:"severity"`
	Confidence       float64  `json:"confidence"`
	Symptoms         []string `json:"symptoms"`
	Treatment        string   `json:"treatment"`
	RecommendedTreat string   `json:"recommended_treatment"`
	TreatmentCamel   string   `json:"recommendedTreatment"`
	Dosage           string   `json:"dosage"`
	ImmediateAction  string   `json:"immediate_action"`
	ImmediateCamel   string   `json:"immediateAction"`
}

// Normalize translates the service's JSON into the typed diagnosis record.
func Normalize(raw []byte) (*types.Diagnosis, error) {
	var r rawRecord
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("diagnosis normalize: %w", err)
	}
	d := &types.Diagnosis{
		Disease:         firstNonEmpty(r.Disease, r.DiseaseName),
		Severity:        r.Severity,
		Confidence:      r.Confidence,
		Symptoms:        r.Symptoms,
		Treatment:       firstNonEmpty(r.Treatment, r.RecommendedTreat, r.TreatmentCamel),
		Dosage:          r.Dosage,
		ImmediateAction: firstNonEmpty(r.ImmediateAction, r.ImmediateCamel),
	}
	if d.Disease == "" {
		return nil, fmt.Errorf("diagnosis normalize: no disease field in response")
	}
	return d, nil
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}
