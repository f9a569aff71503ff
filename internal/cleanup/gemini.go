package cleanup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/raaihank/blackout/internal/config"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const reflowPrompt = `You are an expert text cleaner. Clean and reflow the OCR-extracted text.
1) Fix spacing, remove false line-breaks inside paragraphs but keep real paragraphs.
2) Correct obvious OCR mis-reads (like 'l' vs '1', 'O' vs '0' when clearly wrong).
3) Preserve headings and lists.
4) Return ONLY the cleaned text, no extra commentary.

OCR_TEXT_START:
%s
OCR_TEXT_END:
`

// ErrEmptyResponse is returned when Gemini answers without any text part
var ErrEmptyResponse = errors.New("gemini returned no text")

// Gemini calls the generateContent REST endpoint
type Gemini struct {
	hc      *http.Client
	url     string
	apiKey  string
	limiter *rate.Limiter
	logger  *zap.Logger
}

type gmPart struct {
	Text string `json:"text"`
}

type gmContent struct {
	Role  string   `json:"role,omitempty"`
	Parts []gmPart `json:"parts"`
}

type gmReq struct {
	Contents []gmContent `json:"contents"`
}

type gmResp struct {
	Candidates []struct {
		Content struct {
			Parts []gmPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// NewGemini builds a client for cfg
func NewGemini(cfg config.GeminiConfig, log *zap.Logger) *Gemini {
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-1.5-flash"
	}
	base := strings.TrimRight(cfg.Endpoint, "/")
	if base == "" {
		base = "https://generativelanguage.googleapis.com/v1beta"
	}

	g := &Gemini{
		hc:     &http.Client{Timeout: timeout},
		url:    base + "/models/" + url.PathEscape(model) + ":generateContent",
		apiKey: cfg.APIKey,
		logger: log,
	}
	if cfg.RequestsPerMinute > 0 {
		g.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return g
}

// Clean sends text with the reflow prompt and returns the first candidate
func (g *Gemini) Clean(ctx context.Context, text string) (string, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	body, err := json.Marshal(gmReq{Contents: []gmContent{{
		Role:  "user",
		Parts: []gmPart{{Text: fmt.Sprintf(reflowPrompt, text)}},
	}}})
	if err != nil {
		return "", err
	}

	u, err := url.Parse(g.url)
	if err != nil {
		return "", fmt.Errorf("invalid gemini url: %w", err)
	}
	q := u.Query()
	q.Set("key", g.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := g.hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", fmt.Errorf("gemini upstream %d: %s", resp.StatusCode, strings.TrimSpace(string(slurp)))
	}

	var gr gmResp
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return "", fmt.Errorf("gemini decode: %w", err)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}

	var out strings.Builder
	for _, p := range gr.Candidates[0].Content.Parts {
		out.WriteString(p.Text)
	}

	g.logger.Debug("Gemini cleanup finished",
		zap.Int("input_length", len(text)),
		zap.Int("output_length", out.Len()),
		zap.Duration("duration", time.Since(start)))

	return strings.TrimSpace(out.String()), nil
}
