// Copyright 2025 XynergyOS
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package bedrock implements the llm.Provider interface for AWS Bedrock
// managed models, with AWS Signature V4 authentication via IAM roles.
package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"xynergyos/platform/llm"
)

const (
	// DefaultRegion is used when no region is configured.
	DefaultRegion = "us-east-1"

	// DefaultModel is used when neither the request nor the config names
	// a model.
	DefaultModel = "anthropic.claude-3-5-sonnet-20240620-v1:0"

	// DefaultMaxTokens caps the response when the request does not.
	DefaultMaxTokens = 4096
)

// InvokeAPI is the subset of the Bedrock runtime client the provider
// uses, abstracted for testing.
type InvokeAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Config configures the Bedrock provider.
type Config struct {
	Name   string // Optional: instance name (default "bedrock")
	Region string // Optional: AWS region
	Model  string // Optional: default model id
}

// Provider invokes Bedrock models.
type Provider struct {
	name   string
	region string
	model  string
	client InvokeAPI
}

// NewProvider loads the AWS configuration for the region and creates a
// provider instance. Authentication comes from the ambient IAM identity.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.Name == "" {
		cfg.Name = "bedrock"
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Provider{
		name:   cfg.Name,
		region: cfg.Region,
		model:  cfg.Model,
		client: bedrockruntime.NewFromConfig(awsCfg),
	}, nil
}

// NewProviderFromClient creates a provider around an existing client
// (used by tests).
func NewProviderFromClient(client InvokeAPI, cfg Config) *Provider {
	if cfg.Name == "" {
		cfg.Name = "bedrock"
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	return &Provider{
		name:   cfg.Name,
		region: cfg.Region,
		model:  cfg.Model,
		client: client,
	}
}

// Name implements llm.Provider.
func (p *Provider) Name() string {
	return p.name
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = p.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	requestBody, err := buildRequestBody(req, model, maxTokens)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	requestJSON, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	output, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(model),
		Body:        requestJSON,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock API error: %w", err)
	}

	resp, err := parseResponseBody(output.Body, model)
	if err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	resp.Model = model
	resp.Latency = time.Since(start)
	return resp, nil
}

// buildRequestBody shapes the request for the model family.
func buildRequestBody(req llm.CompletionRequest, model string, maxTokens int) (map[string]interface{}, error) {
	switch modelFamily(model) {
	case "anthropic":
		body := map[string]interface{}{
			"anthropic_version": "bedrock-2023-05-31",
			"max_tokens":        maxTokens,
			"messages": []map[string]string{
				{"role": "user", "content": req.Prompt},
			},
		}
		if req.SystemPrompt != "" {
			body["system"] = req.SystemPrompt
		}
		if req.Temperature != nil {
			body["temperature"] = *req.Temperature
		}
		return body, nil
	case "amazon":
		genConfig := map[string]interface{}{
			"maxTokenCount": maxTokens,
		}
		if req.Temperature != nil {
			genConfig["temperature"] = *req.Temperature
		}
		return map[string]interface{}{
			"inputText":            req.Prompt,
			"textGenerationConfig": genConfig,
		}, nil
	case "meta":
		body := map[string]interface{}{
			"prompt":      req.Prompt,
			"max_gen_len": maxTokens,
		}
		if req.Temperature != nil {
			body["temperature"] = *req.Temperature
		}
		return body, nil
	default:
		return nil, fmt.Errorf("unsupported model family for %q", model)
	}
}

func parseResponseBody(body []byte, model string) (*llm.CompletionResponse, error) {
	switch modelFamily(model) {
	case "anthropic":
		var resp struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
			StopReason string `json:"stop_reason"`
			Usage      struct {
				InputTokens  int `json:"input_tokens"`
				OutputTokens int `json:"output_tokens"`
			} `json:"usage"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, err
		}
		var content strings.Builder
		for _, block := range resp.Content {
			if block.Type == "text" {
				content.WriteString(block.Text)
			}
		}
		return &llm.CompletionResponse{
			Content:      content.String(),
			FinishReason: resp.StopReason,
			Usage: llm.UsageStats{
				PromptTokens:     resp.Usage.InputTokens,
				CompletionTokens: resp.Usage.OutputTokens,
				TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
			},
		}, nil
	case "amazon":
		var resp struct {
			Results []struct {
				OutputText       string `json:"outputText"`
				CompletionReason string `json:"completionReason"`
				TokenCount       int    `json:"tokenCount"`
			} `json:"results"`
			InputTextTokenCount int `json:"inputTextTokenCount"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, err
		}
		if len(resp.Results) == 0 {
			return nil, fmt.Errorf("empty results from model")
		}
		return &llm.CompletionResponse{
			Content:      resp.Results[0].OutputText,
			FinishReason: resp.Results[0].CompletionReason,
			Usage: llm.UsageStats{
				PromptTokens:     resp.InputTextTokenCount,
				CompletionTokens: resp.Results[0].TokenCount,
				TotalTokens:      resp.InputTextTokenCount + resp.Results[0].TokenCount,
			},
		}, nil
	case "meta":
		var resp struct {
			Generation           string `json:"generation"`
			StopReason           string `json:"stop_reason"`
			PromptTokenCount     int    `json:"prompt_token_count"`
			GenerationTokenCount int    `json:"generation_token_count"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, err
		}
		return &llm.CompletionResponse{
			Content:      resp.Generation,
			FinishReason: resp.StopReason,
			Usage: llm.UsageStats{
				PromptTokens:     resp.PromptTokenCount,
				CompletionTokens: resp.GenerationTokenCount,
				TotalTokens:      resp.PromptTokenCount + resp.GenerationTokenCount,
			},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported model family for %q", model)
	}
}

// modelFamily extracts the vendor segment from a Bedrock model id.
// Model ids follow "vendor.model-name-version"; inference profile ids
// carry a regional prefix such as "us." or "eu." before the vendor.
func modelFamily(modelID string) string {
	segments := strings.Split(modelID, ".")
	if len(segments) < 2 {
		return ""
	}
	switch segments[0] {
	case "us", "eu", "apac", "global":
		if len(segments) < 3 {
			return ""
		}
		return segments[1]
	default:
		return segments[0]
	}
}
