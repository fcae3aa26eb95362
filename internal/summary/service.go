package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/fixmate-service/internal/config"
	"github.com/spec-kit/fixmate-service/internal/domain"
)

// Service calls the external text-generation collaborator to produce an
// executive summary of the current workload. Strictly best effort: any
// failure degrades to explanatory text, never an error, so nothing in the
// system depends on it.
type Service struct {
	cfg    config.SummaryConfig
	http   *http.Client
	logger *zap.Logger
}

// NewService constructs the summary service.
func NewService(cfg config.SummaryConfig, logger *zap.Logger) *Service {
	return &Service{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout()},
		logger: logger,
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// MaintenanceReport summarizes the given issues. Resolved issues are
// excluded by the caller; an unconfigured API key or any transport failure
// yields a fallback message.
func (s *Service) MaintenanceReport(ctx context.Context, issues []domain.Issue) string {
	if s.cfg.APIKey == "" {
		return "API key not configured. Unable to generate AI insights."
	}

	var lines []string
	for _, i := range issues {
		lines = append(lines, fmt.Sprintf("- [%s] %s: %s (Reported by %s)",
			i.Status, i.Category, i.Description, i.ResidentName))
	}

	prompt := fmt.Sprintf(`You are a facility maintenance expert. Analyze the following maintenance requests and provide a brief executive summary.

Data:
%s

Please provide:
1. A summary of the current workload.
2. Identify any trends (e.g., recurring plumbing issues).
3. Suggest 2 priority actions for the maintenance team.

Keep it concise (max 150 words). Return plain text.`, strings.Join(lines, "\n"))

	text, err := s.generate(ctx, prompt)
	if err != nil {
		s.logger.Error("summary generation failed", zap.Error(err))
		return "Failed to generate insights due to an API error."
	}
	if text == "" {
		return "No analysis generated."
	}
	return text
}

func (s *Service) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		strings.TrimRight(s.cfg.Endpoint, "/"), s.cfg.Model, s.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("text-generation service: status %d", resp.StatusCode)
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}
