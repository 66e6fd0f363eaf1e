// Package serpapi implements the search.Provider contract on top of the
// SerpAPI Google Jobs engine.
package serpapi

import (
	"compress/gzip"
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

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/jmorante/job-hunter/internal/logger"
	"github.com/jmorante/job-hunter/internal/search"
)

const (
	apiURL    = "https://serpapi.com/search.json"
	userAgent = "jmorante/job-hunter"
	engine    = "google_jobs"
	language  = "en"
	country   = "us"

	// Source is the provider name stamped on every listing.
	Source = "google_jobs"

	defaultLocation = "United States"
	defaultNum      = 10

	contentEncoding = "gzip, deflate, br"
)

type Client struct {
	apiKey     string
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
	Location   string
}

func New(apiKey string, logger *zap.Logger) *Client {
	return &Client{
		apiKey: apiKey,
		APIURL: apiURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:    logger,
		UserAgent: userAgent,
		Location:  defaultLocation,
	}
}

func (c *Client) Name() string {
	return Source
}

// Search runs one Google Jobs query and returns the raw listings. A failed
// query never panics the run: callers get a *search.ProviderError to log.
func (c *Client) Search(ctx context.Context, query string, num int) ([]search.Listing, error) {
	if num <= 0 {
		num = defaultNum
	}

	c.logger.Debug("searching google jobs", zap.String("query", query), zap.Int("num", num))

	var response searchResponse
	status, err := c.getJSON(ctx, c.APIURL, c.buildParams(query, num), &response)
	if err != nil {
		return nil, &search.ProviderError{Provider: c.Name(), Query: query, Status: status, Err: err}
	}

	if response.Error != "" {
		return nil, &search.ProviderError{Provider: c.Name(), Query: query, Err: errors.New(response.Error)}
	}

	listings, err := c.parseResults(response.JobsResults)
	if err != nil {
		return nil, &search.ProviderError{Provider: c.Name(), Query: query, Err: err}
	}

	c.logger.Debug("got google jobs results", zap.String("query", query), zap.Int("count", len(listings)))

	return listings, nil
}

type searchResponse struct {
	JobsResults []map[string]any `json:"jobs_results"`
	Error       string           `json:"error"`
}

type jobResult struct {
	Title              string        `json:"title"`
	CompanyName        string        `json:"company_name"`
	Location           string        `json:"location"`
	Description        string        `json:"description"`
	Link               string        `json:"link"`
	ApplyOptions       []applyOption `json:"apply_options"`
	DetectedExtensions extensions    `json:"detected_extensions"`
}

type applyOption struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

type extensions struct {
	PostedAt     string `json:"posted_at"`
	ScheduleType string `json:"schedule_type"`
	Salary       string `json:"salary"`
}

var salaryAmount = regexp.MustCompile(`(\d[\d,]*(?:\.\d+)?)\s*([kK])?`)

// parseSalary extracts yearly salary bounds from a detected_extensions salary
// string such as "100K–120K a year". Hourly and unparseable strings yield no
// bounds; a single amount sets both.
func parseSalary(s string) (int, int) {
	if !strings.Contains(strings.ToLower(s), "year") {
		return 0, 0
	}

	var amounts []int
	for _, match := range salaryAmount.FindAllStringSubmatch(s, -1) {
		value, err := strconv.ParseFloat(strings.ReplaceAll(match[1], ",", ""), 64)
		if err != nil {
			continue
		}
		if match[2] != "" {
			value *= 1000
		}
		amounts = append(amounts, int(value))
	}

	if len(amounts) == 0 {
		return 0, 0
	}

	return amounts[0], amounts[len(amounts)-1]
}

func (c *Client) buildParams(query string, num int) url.Values {
	q := url.Values{}
	q.Set("engine", engine)
	q.Set("q", query)
	q.Set("location", c.Location)
	q.Set("num", strconv.Itoa(num))
	q.Set("hl", language)
	q.Set("gl", country)
	q.Set("api_key", c.apiKey)

	return q
}

func (c *Client) parseResults(results []map[string]any) ([]search.Listing, error) {
	listings := make([]search.Listing, 0, len(results))

	for _, raw := range results {
		var job jobResult
		cfg := &mapstructure.DecoderConfig{
			Metadata: nil,
			Result:   &job,
			TagName:  "json",
		}
		decoder, err := mapstructure.NewDecoder(cfg)
		if err != nil {
			return nil, err
		}
		if err := decoder.Decode(raw); err != nil {
			return nil, fmt.Errorf("decoding job result: %w", err)
		}

		// Apply links keep their original order, empty links included.
		// The first slot decides the canonical URL downstream.
		applyLinks := make([]string, 0, len(job.ApplyOptions))
		for _, opt := range job.ApplyOptions {
			applyLinks = append(applyLinks, opt.Link)
		}

		salaryMin, salaryMax := parseSalary(job.DetectedExtensions.Salary)

		listings = append(listings, search.Listing{
			Title:       job.Title,
			Company:     job.CompanyName,
			Location:    job.Location,
			Description: job.Description,
			Link:        job.Link,
			ApplyLinks:  applyLinks,
			PostedDate:  job.DetectedExtensions.PostedAt,
			SalaryMin:   salaryMin,
			SalaryMax:   salaryMax,
			Source:      Source,
			Raw:         raw,
		})
	}

	return listings, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, q url.Values, target interface{}) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, err
	}

	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept-Encoding", contentEncoding)
	if q != nil {
		req.URL.RawQuery = q.Encode()
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	var gzipReader *gzip.Reader
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err = gzip.NewReader(resp.Body)
		if err != nil {
			return resp.StatusCode, err
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return resp.StatusCode, err
	}

	if resp.StatusCode != http.StatusOK {
		if snippet := logger.TruncateForLog(string(data), 200); snippet != "" {
			return resp.StatusCode, fmt.Errorf("bad status: %s: %s", resp.Status, snippet)
		}
		return resp.StatusCode, fmt.Errorf("bad status: %s", resp.Status)
	}

	if target == nil {
		return resp.StatusCode, nil
	}

	if err := json.Unmarshal(data, target); err != nil {
		return resp.StatusCode, err
	}

	return resp.StatusCode, nil
}
