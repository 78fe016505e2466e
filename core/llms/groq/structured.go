package groq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/zhafranr/nova-core/core/llms"
	"go.opentelemetry.io/otel/attribute"
)

// GenerateJSON makes one blocking completion constrained to the JSON
// schema reflected from T and unmarshals the result into it.
func GenerateJSON[T any](ctx context.Context, client *Client, prompt string, opts ...llms.PromptOption) (*T, error) {
	ctx, span := tracer.Start(ctx, "prompt llm structured")
	defer span.End()

	options := llms.PromptOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	var output T
	reflector := jsonschema.Reflector{DoNotReference: true}
	schema := reflector.Reflect(output)
	outputTypeName := reflect.TypeOf(output).Name()

	reqBody := schemaRequestBody{
		Model:    client.model,
		Messages: toMessages(options, prompt),
		ResponseFormat: &chatResponseFormat{
			Type: "json_schema",
			JSONSchema: &jsonSchemaFormat{
				Name:   outputTypeName,
				Schema: *schema,
				Strict: true,
			},
		},
	}

	span.SetAttributes(attribute.String("request.model", client.model))
	schemaString, _ := schema.MarshalJSON()
	span.SetAttributes(attribute.String("request.schema", string(schemaString)))

	body, err := client.post(ctx, chatURL, reqBody)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	var responseBody completionResponseBody
	if err := json.Unmarshal(body, &responseBody); err != nil {
		err = fmt.Errorf("error unmarshalling completion: %w", err)
		span.RecordError(err)
		return nil, err
	}
	if len(responseBody.Choices) == 0 {
		err := errors.New("completion carried no choices")
		span.RecordError(err)
		return nil, err
	}

	content := responseBody.Choices[0].Message.Content
	if split := strings.Split(content, "```"); len(split) > 1 {
		content = split[1]
	}
	if err := json.Unmarshal([]byte(content), &output); err != nil {
		err = fmt.Errorf("error unmarshalling response: %w", err)
		span.RecordError(err)
		return nil, err
	}

	return &output, nil
}

type schemaRequestBody struct {
	Model          string              `json:"model"`
	Messages       []message           `json:"messages"`
	ResponseFormat *chatResponseFormat `json:"response_format,omitempty"`
}

type chatResponseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *jsonSchemaFormat `json:"json_schema,omitempty"`
}

type jsonSchemaFormat struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Schema      jsonschema.Schema `json:"schema"`
	Strict      bool              `json:"strict"`
}
