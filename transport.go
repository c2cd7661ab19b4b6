package reqflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"
)

const (
	contentTypeHeader = "Content-Type"
	contentTypeJSON   = "application/json"
	contentTypeForm   = "application/x-www-form-urlencoded"
	// ContentTypeMultipart is the header value Upload sets; the transport adds
	// the boundary when it encodes the multipart body.
	ContentTypeMultipart = "multipart/form-data"

	maxResponseSize = 10 * 1024 * 1024
)

// HTTPTransport dispatches requests with a *http.Client. URLs are resolved
// against the base URL, Params become the query string, and responses outside
// 2xx fail with a transport *ClientError that carries the response.
type HTTPTransport struct {
	httpClient  *http.Client
	baseURL     *url.URL
	maxBodySize int64
}

// NewHTTPTransport creates a transport. baseURL may be empty.
func NewHTTPTransport(httpClient *http.Client, baseURL string) (*HTTPTransport, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	t := &HTTPTransport{httpClient: httpClient, maxBodySize: maxResponseSize}
	if baseURL != "" {
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("parse base url: %w", err)
		}
		t.baseURL = u
	}
	return t, nil
}

// Dispatch sends req and reads the whole response body.
func (t *HTTPTransport) Dispatch(ctx context.Context, req *Request) (*Response, error) {
	target, err := t.resolve(req)
	if err != nil {
		return nil, err
	}

	header := req.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	body, err := encodeBody(req.Data, header)
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header = header

	httpResp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, t.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > t.maxBodySize {
		return nil, &ClientError{
			Type:       ErrorTypeTransport,
			Message:    fmt.Sprintf("response body exceeds %d bytes", t.maxBodySize),
			Method:     method,
			URL:        target,
			StatusCode: httpResp.StatusCode,
			Timestamp:  time.Now(),
		}
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Data:       data,
		Request:    req,
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, &ClientError{
			Type:       ErrorTypeTransport,
			Message:    fmt.Sprintf("request failed with status code %d", httpResp.StatusCode),
			Method:     method,
			URL:        target,
			StatusCode: httpResp.StatusCode,
			Response:   resp,
			Timestamp:  time.Now(),
		}
	}
	return resp, nil
}

func (t *HTTPTransport) resolve(req *Request) (string, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if t.baseURL != nil && !u.IsAbs() {
		// Joined like a path prefix so "/users" under "http://h/api" stays
		// below /api.
		base := *t.baseURL
		base.Path = strings.TrimSuffix(base.Path, "/") + "/" + strings.TrimPrefix(u.Path, "/")
		base.RawPath = ""
		base.RawQuery = u.RawQuery
		u = &base
	}

	if len(req.Params) > 0 {
		q := u.Query()
		for _, p := range req.Params {
			q.Add(p.Key, fmt.Sprint(p.Value))
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// encodeBody turns a payload into a request body and fills in Content-Type
// unless the caller already chose one. Under a multipart Content-Type, field
// payloads are written as multipart parts.
func encodeBody(data any, header http.Header) (io.Reader, error) {
	switch d := data.(type) {
	case nil:
		return nil, nil
	case []byte:
		return bytes.NewReader(d), nil
	case string:
		return strings.NewReader(d), nil
	case io.Reader:
		return d, nil
	case *FormData:
		return encodeMultipart(d, header)
	}

	if isMultipart(header) {
		form, err := formDataOf(data)
		if err != nil {
			return nil, err
		}
		return encodeMultipart(form, header)
	}

	switch d := data.(type) {
	case Fields:
		setDefaultContentType(header, contentTypeForm)
		values := url.Values{}
		for _, f := range d {
			values.Add(f.Key, fmt.Sprint(f.Value))
		}
		return strings.NewReader(values.Encode()), nil
	case url.Values:
		setDefaultContentType(header, contentTypeForm)
		return strings.NewReader(d.Encode()), nil
	}

	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	setDefaultContentType(header, contentTypeJSON)
	return bytes.NewReader(encoded), nil
}

func isMultipart(header http.Header) bool {
	mediaType, _, err := mime.ParseMediaType(header.Get(contentTypeHeader))
	return err == nil && mediaType == ContentTypeMultipart
}

// encodeMultipart keeps a boundary the caller put in Content-Type and
// otherwise sets the header to the writer's own.
func encodeMultipart(form *FormData, header http.Header) (io.Reader, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	mediaType, params, err := mime.ParseMediaType(header.Get(contentTypeHeader))
	if err == nil && mediaType == ContentTypeMultipart && params["boundary"] != "" {
		if err := w.SetBoundary(params["boundary"]); err != nil {
			return nil, err
		}
	} else {
		header.Set(contentTypeHeader, w.FormDataContentType())
	}
	if err := form.writeTo(w); err != nil {
		return nil, err
	}
	return &buf, nil
}

// formDataOf converts field payloads to multipart parts. Maps and url.Values
// are written in sorted key order.
func formDataOf(data any) (*FormData, error) {
	form := NewFormData()
	switch d := data.(type) {
	case Fields:
		for _, f := range d {
			form.Append(f.Key, fmt.Sprint(f.Value))
		}
	case url.Values:
		for _, k := range slices.Sorted(maps.Keys(d)) {
			for _, v := range d[k] {
				form.Append(k, v)
			}
		}
	case map[string]string:
		for _, k := range slices.Sorted(maps.Keys(d)) {
			form.Append(k, d[k])
		}
	case map[string]any:
		for _, k := range slices.Sorted(maps.Keys(d)) {
			form.Append(k, fmt.Sprint(d[k]))
		}
	default:
		return nil, fmt.Errorf("cannot encode %T as %s", data, ContentTypeMultipart)
	}
	return form, nil
}

func setDefaultContentType(header http.Header, contentType string) {
	if header.Get(contentTypeHeader) == "" {
		header.Set(contentTypeHeader, contentType)
	}
}
