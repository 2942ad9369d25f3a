package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
	"github.com/cohere-ai/cohere-go/v2/option"
)

const cohereDefaultModel = "command-r-plus"

// CohereClient generates text through the Cohere chat endpoint.
type CohereClient struct {
	client *cohereclient.Client
	model  string
}

// NewCohereClient builds a chat client. baseURL may be empty to use the
// public endpoint.
func NewCohereClient(apiKey, model, baseURL string, httpClient *http.Client) (*CohereClient, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if model == "" {
		model = cohereDefaultModel
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	options := []option.RequestOption{
		cohereclient.WithToken(apiKey),
		cohereclient.WithHTTPClient(httpClient),
	}
	if baseURL != "" {
		options = append(options, cohereclient.WithBaseURL(baseURL))
	}

	return &CohereClient{
		client: cohereclient.NewClient(options...),
		model:  model,
	}, nil
}

func (c *CohereClient) Generate(ctx context.Context, prompt string) (string, error) {
	model := c.model
	resp, err := c.client.Chat(ctx, &cohere.ChatRequest{
		Message: prompt,
		Model:   &model,
	})
	if err != nil {
		return "", fmt.Errorf("%w: cohere chat: %v", ErrProviderDown, err)
	}
	if resp == nil || strings.TrimSpace(resp.Text) == "" {
		return "", ErrEmptyResponse
	}
	return resp.Text, nil
}
