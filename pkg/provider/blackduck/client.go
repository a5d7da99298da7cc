package blackduck

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samber/oops"
	"golang.org/x/oauth2"
	"k8s.io/utils/clock"

	"github.com/sudesh1611/scanreport/pkg/log"
)

const (
	authenticatePath = "/api/tokens/authenticate"

	mediaTypeUser            = "application/vnd.blackducksoftware.user-4+json"
	mediaTypeComponentDetail = "application/vnd.blackducksoftware.component-detail-5+json"

	// tokenLeeway is subtracted from the advertised token lifetime.
	tokenLeeway = 5 * time.Second
)

// Resolver turns a component reference into human-readable upgrade guidance.
// Implementations are best-effort and return "" when no guidance is available.
type Resolver interface {
	UpgradeGuidance(ctx context.Context, ref ComponentRef) string
}

// NopResolver never resolves guidance. It is used for offline runs.
type NopResolver struct{}

func (NopResolver) UpgradeGuidance(context.Context, ComponentRef) string {
	return ""
}

// Client queries the component-analysis API for upgrade guidance.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
}

type clientOptions struct {
	httpClient *http.Client
	logger     *log.Logger
	clock      clock.PassiveClock
}

type ClientOption func(*clientOptions)

// WithHTTPClient sets the client used for both authentication and API calls.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(o *clientOptions) {
		o.httpClient = c
	}
}

// NewHTTPClient returns an HTTP client for the API. insecure disables server
// certificate verification for self-signed deployments.
func NewHTTPClient(timeout time.Duration, insecure bool) *http.Client {
	c := &http.Client{Timeout: timeout}
	if insecure {
		c.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return c
}

func WithClientLogger(l *log.Logger) ClientOption {
	return func(o *clientOptions) {
		o.logger = l
	}
}

func WithClientClock(c clock.PassiveClock) ClientOption {
	return func(o *clientOptions) {
		o.clock = c
	}
}

// NewClient returns a client authenticating with apiToken. Bearer tokens are
// fetched lazily and reused until shortly before they expire.
func NewClient(ctx context.Context, baseURL, apiToken string, opts ...ClientOption) *Client {
	o := &clientOptions{
		httpClient: NewHTTPClient(30*time.Second, false),
		clock:      clock.RealClock{},
	}
	for _, opt := range opts {
		opt(o)
	}
	logger := log.WithPrefixOf(o.logger, "blackduck")
	baseURL = strings.TrimRight(baseURL, "/")

	ts := oauth2.ReuseTokenSource(nil, &tokenSource{
		baseURL:    baseURL,
		apiToken:   apiToken,
		httpClient: o.httpClient,
		clock:      o.clock,
		logger:     logger,
	})
	ctx = context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)

	return &Client{
		baseURL:    baseURL,
		httpClient: oauth2.NewClient(ctx, ts),
		logger:     logger,
	}
}

type guidanceTerm struct {
	OriginName  string `json:"originName"`
	VersionName string `json:"versionName"`
}

func (t *guidanceTerm) label() string {
	if t == nil {
		return ""
	}
	if t.OriginName != "" {
		return t.OriginName
	}
	return t.VersionName
}

type upgradeGuidance struct {
	ShortTerm *guidanceTerm `json:"shortTerm"`
	LongTerm  *guidanceTerm `json:"longTerm"`
}

// UpgradeGuidance implements Resolver. Any failure is logged and yields "".
func (c *Client) UpgradeGuidance(ctx context.Context, ref ComponentRef) string {
	logger := c.logger.With(
		log.String("component", ref.ComponentID),
		log.String("component_version", ref.ComponentVersionID),
		log.String("origin", ref.OriginID),
	)

	guidance, err := c.upgradeGuidance(ctx, ref)
	if err != nil {
		logger.Error("Failed to fetch upgrade guidance", log.Err(err))
		return ""
	}
	logger.Info("Fetched upgrade guidance", log.String("guidance", guidance))
	return guidance
}

func (c *Client) upgradeGuidance(ctx context.Context, ref ComponentRef) (string, error) {
	u := fmt.Sprintf("%s/api/components/%s/versions/%s", c.baseURL,
		url.PathEscape(ref.ComponentID), url.PathEscape(ref.ComponentVersionID))
	if ref.OriginID != "" {
		u += "/origins/" + url.PathEscape(ref.OriginID)
	}
	u += "/upgrade-guidance"
	eb := oops.With("url", u)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", eb.Wrapf(err, "request build error")
	}
	req.Header.Set("Accept", mediaTypeComponentDetail)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", eb.Wrapf(err, "request error")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", eb.With("status", resp.StatusCode).Errorf("unexpected status code")
	}

	var g upgradeGuidance
	if err = json.NewDecoder(resp.Body).Decode(&g); err != nil {
		return "", eb.Wrapf(err, "json decode error")
	}
	return g.String(), nil
}

// String renders guidance as "Short Term: <x>,Long Term: <y>", leaving out
// terms without a target.
func (g upgradeGuidance) String() string {
	var s string
	if label := g.ShortTerm.label(); label != "" {
		s = fmt.Sprintf("Short Term: %s,", label)
	}
	if label := g.LongTerm.label(); label != "" {
		s += fmt.Sprintf("Long Term: %s", label)
	}
	return s
}

// tokenSource exchanges the API token for a short-lived bearer token.
type tokenSource struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
	clock      clock.PassiveClock
	logger     *log.Logger
}

type authenticateResponse struct {
	BearerToken           string `json:"bearerToken"`
	ExpiresInMilliseconds int64  `json:"expiresInMilliseconds"`
}

func (ts *tokenSource) Token() (*oauth2.Token, error) {
	u := ts.baseURL + authenticatePath
	eb := oops.With("url", u)

	ts.logger.Info("Generating new bearer token")
	req, err := http.NewRequest(http.MethodPost, u, nil)
	if err != nil {
		return nil, eb.Wrapf(err, "request build error")
	}
	req.Header.Set("Accept", mediaTypeUser)
	req.Header.Set("Authorization", "token "+ts.apiToken)

	resp, err := ts.httpClient.Do(req)
	if err != nil {
		return nil, eb.Wrapf(err, "authenticate request error")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, eb.With("status", resp.StatusCode).Errorf("authenticate failed")
	}

	var ar authenticateResponse
	if err = json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return nil, eb.Wrapf(err, "json decode error")
	}
	if ar.BearerToken == "" {
		return nil, eb.Errorf("empty bearer token")
	}

	lifetime := time.Duration(ar.ExpiresInMilliseconds)*time.Millisecond - tokenLeeway
	expiry := ts.clock.Now().Add(lifetime)
	ts.logger.Info("Generated bearer token", log.String("expiry", expiry.Format(time.RFC3339)))

	return &oauth2.Token{
		AccessToken: ar.BearerToken,
		TokenType:   "Bearer",
		Expiry:      expiry,
	}, nil
}
