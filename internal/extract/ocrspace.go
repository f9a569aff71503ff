package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/raaihank/blackout/internal/config"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// OCRSpace posts files to the OCR.space parse API
type OCRSpace struct {
	apiKey   string
	endpoint string
	language string
	engine   int
	hc       *http.Client
	limiter  *rate.Limiter
	logger   *zap.Logger
}

type ocrSpaceResponse struct {
	ParsedResults []struct {
		ParsedText string `json:"ParsedText"`
	} `json:"ParsedResults"`
	IsErroredOnProcessing bool            `json:"IsErroredOnProcessing"`
	ErrorMessage          json.RawMessage `json:"ErrorMessage"`
}

// NewOCRSpace returns a client for cfg. Callers check cfg.APIKey first.
func NewOCRSpace(cfg config.OCRSpaceConfig, log *zap.Logger) *OCRSpace {
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	engine := cfg.Engine
	if engine == 0 {
		engine = 2
	}
	language := cfg.Language
	if language == "" {
		language = "eng"
	}

	o := &OCRSpace{
		apiKey:   cfg.APIKey,
		endpoint: cfg.Endpoint,
		language: language,
		engine:   engine,
		hc:       &http.Client{Timeout: timeout},
		logger:   log,
	}
	if cfg.RequestsPerMinute > 0 {
		o.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return o
}

func (o *OCRSpace) Name() string { return "ocr.space" }

// Extract uploads path and joins the parsed text of every page with LF
func (o *OCRSpace) Extract(ctx context.Context, path string) (string, error) {
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	body, contentType, err := o.buildForm(path)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, body)
	if err != nil {
		return "", fmt.Errorf("ocr.space request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	start := time.Now()
	resp, err := o.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("ocr.space request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", fmt.Errorf("ocr.space upstream %d: %s", resp.StatusCode, strings.TrimSpace(string(slurp)))
	}

	var parsed ocrSpaceResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("ocr.space decode: %w", err)
	}
	if parsed.IsErroredOnProcessing {
		return "", fmt.Errorf("ocr.space processing error: %s", errorMessage(parsed.ErrorMessage))
	}

	pages := make([]string, 0, len(parsed.ParsedResults))
	for _, pr := range parsed.ParsedResults {
		pages = append(pages, pr.ParsedText)
	}

	o.logger.Debug("OCR.space extraction finished",
		zap.Int("pages", len(pages)),
		zap.Duration("duration", time.Since(start)))

	return strings.TrimSpace(strings.Join(pages, "\n")), nil
}

func (o *OCRSpace) buildForm(path string) (*bytes.Buffer, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := map[string]string{
		"apikey":    o.apiKey,
		"language":  o.language,
		"OCREngine": strconv.Itoa(o.engine),
		"isTable":   "false",
		"scale":     "true",
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("copying %s: %w", path, err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

// errorMessage flattens ErrorMessage, which the API sends as a string or a
// list of strings
func errorMessage(raw json.RawMessage) string {
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, "; ")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
