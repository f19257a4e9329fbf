package news

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed item.schema.json
var itemSchemaJSON string

//go:embed article.schema.json
var articleSchemaJSON string

var (
	itemSchemaOnce sync.Once
	itemSchema     *jsonschema.Schema
	itemSchemaErr  error

	articleSchemaOnce sync.Once
	articleSchema     *jsonschema.Schema
	articleSchemaErr  error
)

// DecodeItem parses and validates one stored news item payload. The payload
// must be a single JSON document matching the embedded item schema; semantic
// checks (non-blank text fields, parseable source URL, non-zero timestamp)
// run after the schema pass.
func DecodeItem(raw []byte) (*Item, error) {
	value, err := decodeStrictJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("decode item JSON: %w", err)
	}

	schema, err := loadItemSchema()
	if err != nil {
		return nil, fmt.Errorf("load item schema: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("item schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize item JSON: %w", err)
	}

	var item Item
	if err := json.Unmarshal(normalized, &item); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}

	if err := validateItemSemantics(&item); err != nil {
		return nil, err
	}
	return &item, nil
}

// EncodeItem validates an item and marshals it for storage.
func EncodeItem(item *Item) ([]byte, error) {
	if item == nil {
		return nil, fmt.Errorf("item is nil")
	}
	if err := validateItemSemantics(item); err != nil {
		return nil, err
	}
	data, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("marshal item: %w", err)
	}
	return data, nil
}

// DecodeArticle parses and validates one raw article payload.
func DecodeArticle(raw []byte) (*Article, error) {
	value, err := decodeStrictJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("decode article JSON: %w", err)
	}

	schema, err := loadArticleSchema()
	if err != nil {
		return nil, fmt.Errorf("load article schema: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("article schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize article JSON: %w", err)
	}

	var article Article
	if err := json.Unmarshal(normalized, &article); err != nil {
		return nil, fmt.Errorf("unmarshal article: %w", err)
	}

	if err := validateArticleSemantics(&article); err != nil {
		return nil, err
	}
	return &article, nil
}

func loadItemSchema() (*jsonschema.Schema, error) {
	itemSchemaOnce.Do(func() {
		itemSchema, itemSchemaErr = compileSchema("item.schema.json", itemSchemaJSON)
	})
	return itemSchema, itemSchemaErr
}

func loadArticleSchema() (*jsonschema.Schema, error) {
	articleSchemaOnce.Do(func() {
		articleSchema, articleSchemaErr = compileSchema("article.schema.json", articleSchemaJSON)
	})
	return articleSchema, articleSchemaErr
}

func compileSchema(name, document string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	compiler.AssertFormat = true

	if err := compiler.AddResource(name, strings.NewReader(document)); err != nil {
		return nil, fmt.Errorf("add schema resource %s: %w", name, err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return schema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}
	return value, nil
}

func validateItemSemantics(item *Item) error {
	if item == nil {
		return fmt.Errorf("item is nil")
	}

	if strings.TrimSpace(item.Heading) == "" {
		return fmt.Errorf("heading must not be empty")
	}
	if strings.TrimSpace(item.Summary) == "" {
		return fmt.Errorf("summary must not be empty")
	}
	if strings.TrimSpace(item.Source.Name) == "" {
		return fmt.Errorf("source.name must not be empty")
	}
	if strings.TrimSpace(item.Source.Bias) == "" {
		return fmt.Errorf("source.bias must not be empty")
	}
	if err := validateURI("source.url", item.Source.URL); err != nil {
		return err
	}
	if item.LastUpdated.IsZero() {
		return fmt.Errorf("last_updated must not be zero")
	}
	return nil
}

func validateArticleSemantics(article *Article) error {
	if article == nil {
		return fmt.Errorf("article is nil")
	}

	if strings.TrimSpace(article.Title) == "" {
		return fmt.Errorf("title must not be empty")
	}
	if strings.TrimSpace(article.Content) == "" {
		return fmt.Errorf("content must not be empty")
	}
	if strings.TrimSpace(article.SourceName) == "" {
		return fmt.Errorf("source_name must not be empty")
	}
	if err := validateURI("url", article.URL); err != nil {
		return err
	}

	if analysis := article.Analysis; analysis != nil {
		if strings.TrimSpace(analysis.Heading) == "" {
			return fmt.Errorf("analysis.heading must not be empty")
		}
		if strings.TrimSpace(analysis.Summary) == "" {
			return fmt.Errorf("analysis.summary must not be empty")
		}
		if strings.TrimSpace(analysis.Bias) == "" {
			return fmt.Errorf("analysis.bias must not be empty")
		}
	}
	return nil
}

func validateURI(fieldName, value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fmt.Errorf("%s must not be empty", fieldName)
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return fmt.Errorf("%s is not a valid URI: %w", fieldName, err)
	}
	return nil
}
