package grounding

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/malwarescan/precogs-api-sub001/kit"
)

// RegisterMCP registers grounding tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerPutSnapshotTool(srv)
	s.registerIngestFactTool(srv)
	s.registerValidateTool(srv)
	s.registerFactHistoryTool(srv)
	s.registerStatsTool(srv)
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// --- put snapshot ---

type putSnapshotReq struct {
	Domain           string `json:"domain"`
	SourceURL        string `json:"source_url"`
	ExtractionMethod string `json:"extraction_method"`
	CanonicalText    string `json:"canonical_text"`
}

func (s *Service) registerPutSnapshotTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "precogs_put_snapshot",
		Description: "Store the canonical extracted text for a page. Replaces the prior generation wholesale and returns the new extraction_text_hash.",
		InputSchema: inputSchema(map[string]any{
			"domain":            map[string]any{"type": "string", "description": "Page domain"},
			"source_url":        map[string]any{"type": "string", "description": "Page URL"},
			"extraction_method": map[string]any{"type": "string", "description": "Extraction algorithm/version tag"},
			"canonical_text":    map[string]any{"type": "string", "description": "Exact extracted text all offsets are relative to"},
		}, []string{"domain", "source_url", "extraction_method", "canonical_text"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*putSnapshotReq)
		return s.PutSnapshot(ctx, r.Domain, r.SourceURL, r.ExtractionMethod, r.CanonicalText)
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[putSnapshotReq]())
}

// --- ingest fact ---

func (s *Service) registerIngestFactTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "precogs_ingest_fact",
		Description: "Ingest a fact candidate: mints slot_id/fact_id and applies the revision transition for its slot.",
		InputSchema: inputSchema(map[string]any{
			"domain":          map[string]any{"type": "string"},
			"source_url":      map[string]any{"type": "string"},
			"entity_id":       map[string]any{"type": "string"},
			"predicate":       map[string]any{"type": "string"},
			"object":          map[string]any{"type": "string"},
			"evidence_type":   map[string]any{"type": "string", "enum": []any{"text_extraction", "structured_data", "unknown"}},
			"source_path":     map[string]any{"type": "string", "description": "Structural path for structured_data facts"},
			"evidence_anchor": map[string]any{"type": "object", "description": "Anchor wire payload for text_extraction facts"},
			"supporting_text": map[string]any{"type": "string"},
		}, []string{"domain", "source_url", "entity_id", "predicate"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*FactCandidate)
		return s.IngestFact(ctx, r)
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[FactCandidate]())
}

// --- validate ---

type validateReq struct {
	Domain    string `json:"domain"`
	SourceURL string `json:"source_url"`
}

func (s *Service) registerValidateTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "precogs_validate",
		Description: "Re-validate every current fact of a page against its snapshot. Returns per-fact outcomes and the citation-grade verdict.",
		InputSchema: inputSchema(map[string]any{
			"domain":     map[string]any{"type": "string"},
			"source_url": map[string]any{"type": "string"},
		}, []string{"domain", "source_url"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*validateReq)
		return s.Validate(ctx, r.Domain, r.SourceURL)
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[validateReq]())
}

// --- fact history ---

type factHistoryReq struct {
	SourceURL string `json:"source_url"`
	SlotID    string `json:"slot_id"`
}

func (s *Service) registerFactHistoryTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "precogs_fact_history",
		Description: "Return the full revision chain for one slot, oldest first.",
		InputSchema: inputSchema(map[string]any{
			"source_url": map[string]any{"type": "string"},
			"slot_id":    map[string]any{"type": "string"},
		}, []string{"source_url", "slot_id"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*factHistoryReq)
		return s.FactHistory(ctx, r.SourceURL, r.SlotID)
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[factHistoryReq]())
}

// --- stats ---

type statsReq struct{}

func (s *Service) registerStatsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "precogs_stats",
		Description: "Aggregate counters: snapshots, fact rows, latest facts, validation runs.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		return s.Stats(ctx)
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[statsReq]())
}

// decodeInto builds a decode function unmarshalling tool arguments into T.
func decodeInto[T any]() func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	return func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		r := new(T)
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, r); err != nil {
				return nil, err
			}
		}
		return &kit.MCPDecodeResult{Request: r}, nil
	}
}
