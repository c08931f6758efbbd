package assetstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/davemejos/mediasync/pkg/config"
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
)

// HTTPClient talks to the provider's REST API with signed requests.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
}

func New(cfg *config.Config) *HTTPClient {
	return &HTTPClient{
		baseURL:   strings.TrimSuffix(cfg.AssetStoreBaseURL, "/"),
		apiKey:    cfg.AssetStoreAPIKey,
		apiSecret: cfg.AssetStoreAPISecret,
		httpClient: &http.Client{
			Timeout: cfg.AssetStoreTimeout,
		},
	}
}

// sign computes the request signature the provider expects: the sorted
// key=value pairs joined with &, with the API secret appended, hashed
// with SHA-256.
func (c *HTTPClient) sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}

	sum := sha256.Sum256([]byte(strings.Join(pairs, "&") + c.apiSecret))
	return hex.EncodeToString(sum[:])
}

func (c *HTTPClient) signedValues(params map[string]string) url.Values {
	params["api_key"] = c.apiKey
	params["timestamp"] = strconv.FormatInt(time.Now().Unix(), 10)

	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	values.Set("signature", c.sign(params))
	return values
}

func (c *HTTPClient) Upload(ctx context.Context, params UploadParams) (*RemoteAsset, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	values := c.signedValues(map[string]string{
		"filename": params.Filename,
		"folder":   params.Folder,
	})
	for k := range values {
		if err := writer.WriteField(k, values.Get(k)); err != nil {
			return nil, errors.WithStack(err)
		}
	}

	part, err := writer.CreateFormFile("file", params.Filename)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if _, err := part.Write(params.Data); err != nil {
		return nil, errors.WithStack(err)
	}
	if err := writer.Close(); err != nil {
		return nil, errors.WithStack(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/assets/upload", body)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	asset := &RemoteAsset{}
	if err := c.do(req, asset); err != nil {
		return nil, err
	}
	return asset, nil
}

func (c *HTTPClient) Delete(ctx context.Context, externalID string) error {
	values := c.signedValues(map[string]string{"public_id": externalID})

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.baseURL+"/v1/assets/"+url.PathEscape(externalID)+"?"+values.Encode(), nil)
	if err != nil {
		return errors.WithStack(err)
	}

	return c.do(req, nil)
}

func (c *HTTPClient) List(ctx context.Context, cursor string, maxResults int) (*ListPage, error) {
	params := map[string]string{
		"max_results": strconv.Itoa(maxResults),
	}
	if cursor != "" {
		params["next_cursor"] = cursor
	}
	values := c.signedValues(params)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/v1/assets?"+values.Encode(), nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	page := &ListPage{}
	if err := c.do(req, page); err != nil {
		return nil, err
	}
	return page, nil
}

func (c *HTTPClient) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.WithStack(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errors.WithStack(&APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(msg)),
		})
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.WithStack(err)
	}
	return nil
}
