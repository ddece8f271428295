package api

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/partserve/internal/knowledge"
	"github.com/kalambet/partserve/internal/pipeline"
	"github.com/kalambet/partserve/internal/retrieval"
)

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func TestMCPAskParts(t *testing.T) {
	svc := &mockService{
		chatResult: pipeline.Result{
			Response: "Part 123 should fix it.",
			Part:     &knowledge.PartRecord{PartID: "123", Name: "Drain Pump", Price: 49.99, Appliance: knowledge.ApplianceDishwasher},
		},
	}
	handler := mcpAskParts(MCPDeps{Service: svc})

	req := makeCallToolRequest("ask_parts", map[string]interface{}{
		"query": "dishwasher pump replacement",
	})
	res, err := handler(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("tool errored: %+v", res.Content)
	}

	text := res.Content[0].(mcp.TextContent).Text
	var resp ChatResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if resp.PartInfo == nil || resp.PartInfo.PartID != "123" {
		t.Errorf("part_info = %+v", resp.PartInfo)
	}
}

func TestMCPAskParts_MissingQuery(t *testing.T) {
	handler := mcpAskParts(MCPDeps{Service: &mockService{}})

	res, err := handler(context.Background(), makeCallToolRequest("ask_parts", map[string]interface{}{}))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Fatal("expected tool error for missing query")
	}
}

func TestMCPSearchParts(t *testing.T) {
	svc := &mockService{
		searchResult: []retrieval.Match{
			{Entry: knowledge.Entry{PartID: "123", Appliance: knowledge.ApplianceDishwasher, Question: "pump?", Answer: "yes"}, Score: 0.9},
		},
	}
	handler := mcpSearchParts(MCPDeps{Service: svc})

	res, err := handler(context.Background(), makeCallToolRequest("search_parts", map[string]interface{}{
		"query": "pump",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("tool errored: %+v", res.Content)
	}

	text := res.Content[0].(mcp.TextContent).Text
	var results []SearchResult
	if err := json.Unmarshal([]byte(text), &results); err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].PartID != "123" {
		t.Errorf("results = %+v", results)
	}
}

func TestMCPSearchParts_EmptyResult(t *testing.T) {
	handler := mcpSearchParts(MCPDeps{Service: &mockService{}})

	res, err := handler(context.Background(), makeCallToolRequest("search_parts", map[string]interface{}{
		"query": "unrelated",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatal("empty search must not be a tool error")
	}
	if text := res.Content[0].(mcp.TextContent).Text; text != "[]" {
		t.Errorf("text = %q, want []", text)
	}
}

func TestMCPGetPart(t *testing.T) {
	svc := &mockService{parts: map[string]knowledge.PartRecord{
		"789": {PartID: "789", Name: "Door Gasket", Price: 89, Appliance: knowledge.ApplianceRefrigerator},
	}}
	handler := mcpGetPart(MCPDeps{Service: svc})

	res, err := handler(context.Background(), makeCallToolRequest("get_part", map[string]interface{}{
		"part_id": "789",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("tool errored: %+v", res.Content)
	}
	if !strings.Contains(res.Content[0].(mcp.TextContent).Text, "Door Gasket") {
		t.Errorf("text = %q", res.Content[0].(mcp.TextContent).Text)
	}
}

func TestMCPGetPart_NotFound(t *testing.T) {
	handler := mcpGetPart(MCPDeps{Service: &mockService{}})

	res, err := handler(context.Background(), makeCallToolRequest("get_part", map[string]interface{}{
		"part_id": "999",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Fatal("expected tool error for unknown part")
	}
}
