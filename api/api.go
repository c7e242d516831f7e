package api

import (
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const DefaultGitHubAPI = "https://api.github.com"

type Options struct {
	Timeout   time.Duration
	Retries   int
	UserAgent string
	// GitHubToken is sent as a bearer token to the GitHub API when set.
	GitHubToken string
	GitHubAPI   string
	Logger      *zap.Logger
}

// Client is the HTTP session shared by downloads and release lookups.
type Client struct {
	http      *resty.Client
	githubAPI string
	token     string
	log       *zap.Logger
}

func NewClient(opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.GitHubAPI == "" {
		opts.GitHubAPI = DefaultGitHubAPI
	}
	http := resty.New().
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(10 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500 || r.StatusCode() == 429
		})
	if opts.Timeout > 0 {
		http.SetTimeout(opts.Timeout)
	}
	if opts.UserAgent != "" {
		http.SetHeader("User-Agent", opts.UserAgent)
	}
	return &Client{
		http:      http,
		githubAPI: opts.GitHubAPI,
		token:     opts.GitHubToken,
		log:       opts.Logger,
	}
}
