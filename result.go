package reqflow

import (
	"context"
	"encoding/json"
	"fmt"
)

// Decode unmarshals a JSON response body into T.
func Decode[T any](resp *Response) (T, error) {
	var out T
	if resp == nil {
		return out, fmt.Errorf("decode: nil response")
	}
	if len(resp.Data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(resp.Data, &out); err != nil {
		return out, fmt.Errorf("decode %s response: %w", resp.Request, err)
	}
	return out, nil
}

// RequestJSON runs req on c and decodes the JSON body into T.
func RequestJSON[T any](ctx context.Context, c *Client, req *Request) (T, error) {
	resp, err := c.Request(ctx, req)
	if err != nil {
		var zero T
		return zero, err
	}
	return Decode[T](resp)
}
