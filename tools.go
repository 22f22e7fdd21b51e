package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	searchEndpoint = "https://api.duckduckgo.com/"
	maxPageBytes   = 256 * 1024
	maxPageRunes   = 4000
)

var defaultHTTPClient = &http.Client{Timeout: 20 * time.Second}

// RegisterBuiltins registers the stock tool set: web_search, fetch_page,
// calculator, and the completion tool named by config. A nil client uses a
// shared default with a 20s timeout.
func RegisterBuiltins(r *Registry, config *Config, client *http.Client) error {
	if config == nil {
		config = DefaultConfig()
	}
	if client == nil {
		client = defaultHTTPClient
	}

	if err := r.Register("web_search",
		"Search the web for a query and return a short summary of results.",
		objectSchema(map[string]interface{}{
			"query": map[string]interface{}{"type": "string", "description": "The search query"},
		}, "query"),
		func(ctx context.Context, args map[string]interface{}) (string, error) {
			query, _ := args["query"].(string)
			return webSearch(ctx, client, query)
		}); err != nil {
		return err
	}

	if err := r.Register("fetch_page",
		"Fetch a web page and return its readable text, truncated.",
		objectSchema(map[string]interface{}{
			"url": map[string]interface{}{"type": "string", "description": "The page URL to fetch"},
		}, "url"),
		func(ctx context.Context, args map[string]interface{}) (string, error) {
			pageURL, _ := args["url"].(string)
			return fetchPage(ctx, client, pageURL)
		}); err != nil {
		return err
	}

	if err := r.Register("calculator",
		"Evaluate an arithmetic expression with + - * / and parentheses.",
		objectSchema(map[string]interface{}{
			"expression": map[string]interface{}{"type": "string", "description": "The expression to evaluate"},
		}, "expression"),
		func(ctx context.Context, args map[string]interface{}) (string, error) {
			expression, _ := args["expression"].(string)
			value, err := evalExpression(expression)
			if err != nil {
				return "", err
			}
			return strconv.FormatFloat(value, 'g', -1, 64), nil
		}); err != nil {
		return err
	}

	return r.Register(config.CompletionTool,
		"Call this when your subtask is fully answered. Pass a short summary of your findings.",
		objectSchema(map[string]interface{}{
			"summary": map[string]interface{}{"type": "string", "description": "One-line summary of the completed work"},
		}),
		func(ctx context.Context, args map[string]interface{}) (string, error) {
			return "Task marked as complete.", nil
		})
}

func objectSchema(properties map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		list := make([]interface{}, len(required))
		for i, name := range required {
			list[i] = name
		}
		schema["required"] = list
	}
	return schema
}

// webSearch hits the DuckDuckGo instant-answer API
func webSearch(ctx context.Context, client *http.Client, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", errors.New("query cannot be empty")
	}

	endpoint := searchEndpoint + "?" + url.Values{
		"q":       {query},
		"format":  {"json"},
		"no_html": {"1"},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	var payload struct {
		AbstractText  string `json:"AbstractText"`
		AbstractURL   string `json:"AbstractURL"`
		RelatedTopics []struct {
			Text     string `json:"Text"`
			FirstURL string `json:"FirstURL"`
		} `json:"RelatedTopics"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxPageBytes)).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode search response: %w", err)
	}

	var lines []string
	if payload.AbstractText != "" {
		lines = append(lines, fmt.Sprintf("%s (%s)", payload.AbstractText, payload.AbstractURL))
	}
	for _, topic := range payload.RelatedTopics {
		if topic.Text == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s (%s)", topic.Text, topic.FirstURL))
		if len(lines) >= 6 {
			break
		}
	}
	if len(lines) == 0 {
		return "No results found for: " + query, nil
	}
	return strings.Join(lines, "\n"), nil
}

var (
	scriptRe = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	tagRe    = regexp.MustCompile(`(?s)<[^>]*>`)
	spaceRe  = regexp.MustCompile(`\s+`)
)

// fetchPage retrieves a URL and strips it down to readable text
func fetchPage(ctx context.Context, client *http.Client, pageURL string) (string, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", fmt.Errorf("invalid url: %s", pageURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	text := scriptRe.ReplaceAllString(string(body), " ")
	text = tagRe.ReplaceAllString(text, " ")
	text = spaceRe.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	runes := []rune(text)
	if len(runes) > maxPageRunes {
		text = string(runes[:maxPageRunes]) + "..."
	}
	if text == "" {
		return "Page contained no readable text.", nil
	}
	return text, nil
}

// evalExpression evaluates + - * / with parentheses via recursive descent
func evalExpression(input string) (float64, error) {
	p := &exprParser{input: strings.TrimSpace(input)}
	if p.input == "" {
		return 0, errors.New("expression cannot be empty")
	}
	value, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpaces()
	if p.pos < len(p.input) {
		return 0, fmt.Errorf("unexpected character %q at position %d", p.input[p.pos], p.pos)
	}
	return value, nil
}

type exprParser struct {
	input string
	pos   int
}

func (p *exprParser) skipSpaces() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

func (p *exprParser) peek() byte {
	p.skipSpaces()
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *exprParser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '+':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left += right
		case '-':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, nil
		}
	}
}

func (p *exprParser) parseTerm() (float64, error) {
	left, err := p.parseFactor()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '*':
			p.pos++
			right, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			left *= right
		case '/':
			p.pos++
			right, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, errors.New("division by zero")
			}
			left /= right
		default:
			return left, nil
		}
	}
}

func (p *exprParser) parseFactor() (float64, error) {
	switch p.peek() {
	case '-':
		p.pos++
		value, err := p.parseFactor()
		return -value, err
	case '(':
		p.pos++
		value, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if p.peek() != ')' {
			return 0, errors.New("missing closing parenthesis")
		}
		p.pos++
		return value, nil
	}

	p.skipSpaces()
	start := p.pos
	for p.pos < len(p.input) && (p.input[p.pos] == '.' || (p.input[p.pos] >= '0' && p.input[p.pos] <= '9')) {
		p.pos++
	}
	if start == p.pos {
		return 0, fmt.Errorf("expected number at position %d", start)
	}
	value, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", p.input[start:p.pos])
	}
	return value, nil
}
