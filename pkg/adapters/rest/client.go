package rest

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/pedigree/pkg/core"
)

// Config holds the client settings.
type Config struct {
	BaseURL    string // record base URL, e.g. https://clinic.example/rest/wikis/xwiki/spaces/data/pages/P0001
	Token      string // bearer token, optional
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client is a core.VersionedStore and core.SubjectSource backed by the
// record service.
type Client struct {
	base   *url.URL
	token  string
	http   *http.Client
	logger *slog.Logger
}

// StatusError is returned for unexpected HTTP responses.
type StatusError struct {
	Method string
	URL    string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.Code)
}

// NewClient validates the base URL and returns a client.
func NewClient(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("rest base url required")
	}
	base, err := url.Parse(strings.TrimSuffix(config.BaseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{base: base, token: config.Token, http: config.HTTPClient, logger: config.Logger}, nil
}

func (c *Client) resolve(path string, query url.Values) string {
	u := c.base.ResolveReference(&url.URL{Path: path})
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/xml")
	c.logger.Debug("rest request", "method", req.Method, "url", req.URL.String())
	return c.http.Do(req)
}

// getObject fetches and decodes an object. A 404 yields (nil, nil).
func (c *Client) getObject(ctx context.Context, target string) (*Object, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Method: req.Method, URL: target, Code: resp.StatusCode}
	}

	var obj Object
	if err := xml.NewDecoder(resp.Body).Decode(&obj); err != nil {
		return nil, fmt.Errorf("decode object: %w", err)
	}
	return &obj, nil
}

// FetchDocument reads the data property of the pedigree object. A random
// query parameter defeats intermediary caches.
func (c *Client) FetchDocument(ctx context.Context) (string, error) {
	target := c.resolve(ObjectPath(PedigreeClass)+"/", url.Values{"rand": {strconv.FormatFloat(rand.Float64(), 'f', -1, 64)}})
	obj, err := c.getObject(ctx, target)
	if err != nil {
		return "", err
	}
	if obj == nil {
		return "", nil
	}
	data, _ := obj.Get(PropData)
	return data, nil
}

// PersistDocument posts the data and image properties.
func (c *Client) PersistDocument(ctx context.Context, text string, aux []byte) error {
	form := url.Values{}
	form.Set("property#"+PropData, text)
	form.Set("property#"+PropImage, string(aux))

	target := c.resolve(ObjectPath(PedigreeClass), url.Values{"method": {"PUT"}})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if reason := core.ChangeReason(ctx, ""); reason != "" {
		req.Header.Set("X-Change-Reason", reason)
	}

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return core.ErrReadOnly
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &StatusError{Method: req.Method, URL: target, Code: resp.StatusCode}
	}
	return nil
}

// Versions lists the pedigree revisions newest first.
func (c *Client) Versions(ctx context.Context) ([]core.Version, error) {
	target := c.resolve(ObjectPath(PedigreeClass)+"/history", nil)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Method: req.Method, URL: target, Code: resp.StatusCode}
	}

	var h History
	if err := xml.NewDecoder(resp.Body).Decode(&h); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	versions := make([]core.Version, 0, len(h.Revisions))
	for _, r := range h.Revisions {
		versions = append(versions, core.Version{ID: r.ID, Created: time.Unix(r.Created, 0), Message: r.Message})
	}
	return versions, nil
}

// FetchVersion returns the data property of the pedigree at a revision.
func (c *Client) FetchVersion(ctx context.Context, id string) (string, error) {
	if id == "" || strings.ContainsAny(id, "/?#") {
		return "", fmt.Errorf("%w: %q", core.ErrVersionNotFound, id)
	}
	obj, err := c.getObject(ctx, c.resolve(ObjectPath(PedigreeClass)+"/history/"+url.PathEscape(id), nil))
	if err != nil {
		return "", err
	}
	if obj == nil {
		return "", fmt.Errorf("%w: %s", core.ErrVersionNotFound, id)
	}
	data, _ := obj.Get(PropData)
	return data, nil
}

// FetchSubjectMetadata reads the patient object. Missing names are empty,
// a missing gender is unknown.
func (c *Client) FetchSubjectMetadata(ctx context.Context) (core.ProbandData, error) {
	obj, err := c.getObject(ctx, c.resolve(ObjectPath(PatientClass), nil))
	if err != nil {
		return core.ProbandData{}, err
	}
	if obj == nil {
		return core.ProbandData{}, errors.New("patient record not found")
	}

	var p core.ProbandData
	p.FirstName, _ = obj.Get(PropFirstName)
	p.LastName, _ = obj.Get(PropLastName)
	gender, _ := obj.Get(PropGender)
	p.Gender = core.ParseGender(gender)
	if v, ok := obj.Get(PropBirthDate); ok && v != "" {
		p.BirthDate = &v
	}
	if v, ok := obj.Get(PropDeathDate); ok && v != "" {
		p.DeathDate = &v
	}
	return p, nil
}

var (
	_ core.VersionedStore = (*Client)(nil)
	_ core.SubjectSource  = (*Client)(nil)
)
