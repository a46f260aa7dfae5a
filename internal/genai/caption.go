package genai

import (
	"context"
	"errors"
	"net/http"
)

// CaptionResult is the response of the image captioning endpoint.
type CaptionResult struct {
	Caption string `json:"caption"`
}

// Caption describes the image at imageURL in a single multimodal call.
// prompt may be empty, in which case the API's default instruction is used.
func (c *Client) Caption(ctx context.Context, imageURL, prompt string) (string, error) {
	if imageURL == "" {
		return "", errors.New("image_url is required")
	}

	body := map[string]any{"image_url": imageURL}
	if prompt != "" {
		body["prompt"] = prompt
	}

	var result CaptionResult
	if err := c.do(ctx, http.MethodPost, "/v1/image_caption", body, &result); err != nil {
		return "", err
	}
	return result.Caption, nil
}
