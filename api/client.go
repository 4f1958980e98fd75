// Package api implements the client-side API for the fsmindex server.
//
// The server compiles JSON Schemas into patterns, builds token indexes from
// automaton descriptors and walks text through automata. The fsmindex command
// line tool talks to it through this package.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"runtime"

	"github.com/ollama/fsmindex/envconfig"
	"github.com/ollama/fsmindex/version"
)

// Client encapsulates client state for interacting with the fsmindex
// service. Use ClientFromEnvironment to create new Clients.
type Client struct {
	base *url.URL
	http *http.Client
}

func checkError(resp *http.Response, body []byte) error {
	if resp.StatusCode < http.StatusBadRequest {
		return nil
	}

	apiError := StatusError{StatusCode: resp.StatusCode}

	err := json.Unmarshal(body, &apiError)
	if err != nil {
		// Use the full body as the message if we fail to decode a response.
		apiError.ErrorMessage = string(body)
	}

	return apiError
}

// ClientFromEnvironment creates a new Client using configuration from the
// environment variable FSMINDEX_HOST, which points to the network host and
// port on which the fsmindex service is listening. Its format is
// similar to the host env var for the fsmindex service, e.g.
// "http://localhost:11535" or "127.0.0.1:11535".
func ClientFromEnvironment() (*Client, error) {
	return &Client{
		base: envconfig.Host(),
		http: http.DefaultClient,
	}, nil
}

func NewClient(base *url.URL, http *http.Client) *Client {
	return &Client{
		base: base,
		http: http,
	}
}

func (c *Client) do(ctx context.Context, method, path string, reqData, respData any) error {
	var reqBody io.Reader
	var data []byte
	var err error

	switch reqData := reqData.(type) {
	case io.Reader:
		// reqData is already an io.Reader
		reqBody = reqData
	case nil:
		// noop
	default:
		data, err = json.Marshal(reqData)
		if err != nil {
			return err
		}

		reqBody = bytes.NewReader(data)
	}

	requestURL := c.base.JoinPath(path)
	request, err := http.NewRequestWithContext(ctx, method, requestURL.String(), reqBody)
	if err != nil {
		return err
	}

	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")
	request.Header.Set("User-Agent", fmt.Sprintf("fsmindex/%s (%s %s) Go/%s", version.Version, runtime.GOARCH, runtime.GOOS, runtime.Version()))

	respObj, err := c.http.Do(request)
	if err != nil {
		return err
	}
	defer respObj.Body.Close()

	respBody, err := io.ReadAll(respObj.Body)
	if err != nil {
		return err
	}

	if err := checkError(respObj, respBody); err != nil {
		return err
	}

	if len(respBody) > 0 && respData != nil {
		if err := json.Unmarshal(respBody, respData); err != nil {
			return err
		}
	}
	return nil
}

// Schema compiles a JSON Schema into a pattern.
func (c *Client) Schema(ctx context.Context, req *SchemaRequest) (*SchemaResponse, error) {
	var resp SchemaResponse
	if err := c.do(ctx, http.MethodPost, "/api/schema", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Index builds the token index of an automaton over a vocabulary.
func (c *Client) Index(ctx context.Context, req *IndexRequest) (*IndexResponse, error) {
	var resp IndexResponse
	if err := c.do(ctx, http.MethodPost, "/api/index", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Walk walks text through an automaton.
func (c *Client) Walk(ctx context.Context, req *WalkRequest) (*WalkResponse, error) {
	var resp WalkResponse
	if err := c.do(ctx, http.MethodPost, "/api/walk", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Version returns the fsmindex server version as a string.
func (c *Client) Version(ctx context.Context) (string, error) {
	var version VersionResponse
	if err := c.do(ctx, http.MethodGet, "/api/version", nil, &version); err != nil {
		return "", err
	}
	return version.Version, nil
}
