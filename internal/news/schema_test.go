package news

import (
	"strings"
	"testing"
	"time"
)

func TestDecodeItem_Valid(t *testing.T) {
	raw := []byte(`{
		"heading":"Senate passes budget deal",
		"summary":"The chamber approved the package after a short debate.",
		"source":{
			"url":"https://example.com/politics/budget-deal",
			"name":"Example Wire",
			"bias":"center",
			"bias_explanation":"Straight reporting with sourced quotes."
		},
		"last_updated":"2026-03-01T12:30:00Z",
		"model_used":"grader-1"
	}`)

	item, err := DecodeItem(raw)
	if err != nil {
		t.Fatalf("expected item to be valid, got error: %v", err)
	}

	if item.Heading != "Senate passes budget deal" {
		t.Fatalf("unexpected heading: %q", item.Heading)
	}
	if item.Source.Name != "Example Wire" {
		t.Fatalf("unexpected source name: %q", item.Source.Name)
	}
	want := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	if !item.LastUpdated.Equal(want) {
		t.Fatalf("unexpected last_updated: got %v want %v", item.LastUpdated, want)
	}
}

func TestDecodeItem_MissingRequired(t *testing.T) {
	raw := []byte(`{
		"heading":"No summary here",
		"source":{"url":"https://example.com/a","name":"Example","bias":"center"},
		"last_updated":"2026-03-01T12:30:00Z"
	}`)

	if _, err := DecodeItem(raw); err == nil {
		t.Fatalf("expected validation to fail for missing summary")
	}
}

func TestDecodeItem_UnknownFieldRejected(t *testing.T) {
	raw := []byte(`{
		"heading":"Headline",
		"summary":"Summary.",
		"source":{"url":"https://example.com/a","name":"Example","bias":"center"},
		"last_updated":"2026-03-01T12:30:00Z",
		"extra_field":true
	}`)

	if _, err := DecodeItem(raw); err == nil {
		t.Fatalf("expected validation to fail for unknown field")
	}
}

func TestDecodeItem_WhitespaceHeading(t *testing.T) {
	raw := []byte(`{
		"heading":"   ",
		"summary":"Summary.",
		"source":{"url":"https://example.com/a","name":"Example","bias":"center"},
		"last_updated":"2026-03-01T12:30:00Z"
	}`)

	_, err := DecodeItem(raw)
	if err == nil {
		t.Fatalf("expected validation to fail for whitespace-only heading")
	}
	if !strings.Contains(err.Error(), "heading must not be empty") {
		t.Fatalf("expected heading semantic error, got: %v", err)
	}
}

func TestDecodeItem_TrailingContent(t *testing.T) {
	raw := []byte(`{
		"heading":"Headline",
		"summary":"Summary.",
		"source":{"url":"https://example.com/a","name":"Example","bias":"center"},
		"last_updated":"2026-03-01T12:30:00Z"
	}{"second":"document"}`)

	if _, err := DecodeItem(raw); err == nil {
		t.Fatalf("expected validation to fail for trailing content")
	}
}

func TestDecodeItem_BadTimestamp(t *testing.T) {
	raw := []byte(`{
		"heading":"Headline",
		"summary":"Summary.",
		"source":{"url":"https://example.com/a","name":"Example","bias":"center"},
		"last_updated":"yesterday"
	}`)

	if _, err := DecodeItem(raw); err == nil {
		t.Fatalf("expected validation to fail for non-RFC3339 timestamp")
	}
}

func TestEncodeItem_RoundTrip(t *testing.T) {
	item := &Item{
		Heading: "Fed holds rates steady",
		Summary: "The central bank left its target range unchanged.",
		Source: Source{
			URL:  "https://example.com/econ/fed",
			Name: "Example Business",
			Bias: "center",
		},
		LastUpdated: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}

	data, err := EncodeItem(item)
	if err != nil {
		t.Fatalf("encode item: %v", err)
	}

	decoded, err := DecodeItem(data)
	if err != nil {
		t.Fatalf("decode encoded item: %v", err)
	}
	if decoded.Heading != item.Heading {
		t.Fatalf("unexpected heading after round trip: %q", decoded.Heading)
	}
	if !decoded.LastUpdated.Equal(item.LastUpdated) {
		t.Fatalf("unexpected last_updated after round trip: %v", decoded.LastUpdated)
	}
}

func TestEncodeItem_RejectsInvalid(t *testing.T) {
	item := &Item{
		Heading:     "Headline",
		Summary:     "Summary.",
		Source:      Source{URL: "https://example.com/a", Name: "Example", Bias: "center"},
		LastUpdated: time.Time{},
	}

	if _, err := EncodeItem(item); err == nil {
		t.Fatalf("expected encode to fail for zero last_updated")
	}
}

func TestDecodeArticle_Valid(t *testing.T) {
	raw := []byte(`{
		"title":"Budget vote set for Tuesday",
		"content":"Full article text goes here.",
		"url":"https://example.com/politics/budget-vote",
		"source_name":"Example Wire",
		"published_at":"2026-03-01T08:00:00Z"
	}`)

	article, err := DecodeArticle(raw)
	if err != nil {
		t.Fatalf("expected article to be valid, got error: %v", err)
	}
	if article.Title != "Budget vote set for Tuesday" {
		t.Fatalf("unexpected title: %q", article.Title)
	}
	if article.Analysis != nil {
		t.Fatalf("expected no analysis on raw article")
	}
}

func TestDecodeArticle_PreClassified(t *testing.T) {
	raw := []byte(`{
		"title":"Budget vote set for Tuesday",
		"content":"Full article text goes here.",
		"url":"https://example.com/politics/budget-vote",
		"source_name":"Example Wire",
		"analysis":{
			"heading":"Budget vote scheduled",
			"summary":"Lawmakers will vote on the package Tuesday.",
			"bias":"center",
			"model_used":"grader-1"
		}
	}`)

	article, err := DecodeArticle(raw)
	if err != nil {
		t.Fatalf("expected pre-classified article to be valid, got error: %v", err)
	}
	if article.Analysis == nil {
		t.Fatalf("expected analysis to be present")
	}
	if article.Analysis.Bias != "center" {
		t.Fatalf("unexpected analysis bias: %q", article.Analysis.Bias)
	}
}

func TestDecodeArticle_BadURL(t *testing.T) {
	raw := []byte(`{
		"title":"Headline",
		"content":"Text.",
		"url":"not a url",
		"source_name":"Example"
	}`)

	_, err := DecodeArticle(raw)
	if err == nil {
		t.Fatalf("expected validation to fail for invalid url")
	}
	if !strings.Contains(err.Error(), "url is not a valid URI") {
		t.Fatalf("expected url semantic error, got: %v", err)
	}
}
