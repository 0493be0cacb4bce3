package grounding

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	_ "modernc.org/sqlite"
)

var testImpl = &mcp.Implementation{Name: "grounding-test", Version: "0.1.0"}

func mcpSession(t *testing.T) (*Service, *mcp.ClientSession) {
	t.Helper()
	svc := newTestService(t)

	srv := mcp.NewServer(testImpl, nil)
	svc.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()

	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return svc, session
}

func callTool(t *testing.T, session *mcp.ClientSession, name string, args any) string {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if err := result.GetError(); err != nil {
		t.Fatalf("CallTool(%s) tool error: %v", name, err)
	}
	if len(result.Content) == 0 {
		t.Fatalf("CallTool(%s): empty content", name)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent, got %T", name, result.Content[0])
	}
	return tc.Text
}

// --- precogs_put_snapshot ---

func TestMCP_PutSnapshot(t *testing.T) {
	svc, session := mcpSession(t)

	text := callTool(t, session, "precogs_put_snapshot", map[string]any{
		"domain":            testDomain,
		"source_url":        testURL,
		"extraction_method": "pagetext/md.v2",
		"canonical_text":    testText,
	})

	var snap Snapshot
	if err := json.Unmarshal([]byte(text), &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if snap.ExtractionTextHash != svc.Hasher().Sum(testText) {
		t.Errorf("ExtractionTextHash = %q, want hash of canonical text", snap.ExtractionTextHash)
	}
}

// --- precogs_ingest_fact / precogs_fact_history ---

func TestMCP_IngestFactAndHistory(t *testing.T) {
	svc, session := mcpSession(t)
	snap := putTestSnapshot(t, svc)

	cand := anchoredCandidate(t, svc, snap, "acme", "offers", "same-day delivery", 0, 9)
	var anchorObj map[string]any
	if err := json.Unmarshal(cand.Anchor, &anchorObj); err != nil {
		t.Fatal(err)
	}

	text := callTool(t, session, "precogs_ingest_fact", map[string]any{
		"domain":          cand.Domain,
		"source_url":      cand.SourceURL,
		"entity_id":       cand.EntityID,
		"predicate":       cand.Predicate,
		"object":          cand.Object,
		"evidence_type":   cand.EvidenceType,
		"evidence_anchor": anchorObj,
		"supporting_text": cand.SupportingText,
	})

	var res IngestResult
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if res.Revision != 1 || res.SlotID == "" {
		t.Fatalf("result = %+v", res)
	}

	text = callTool(t, session, "precogs_fact_history", map[string]any{
		"source_url": testURL,
		"slot_id":    res.SlotID,
	})
	var history []*Fact
	if err := json.Unmarshal([]byte(text), &history); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(history) != 1 || history[0].FactID != res.FactID {
		t.Fatalf("history = %+v", history)
	}
}

// --- precogs_validate ---

func TestMCP_Validate(t *testing.T) {
	svc, session := mcpSession(t)
	snap := putTestSnapshot(t, svc)

	if _, err := svc.IngestFact(context.Background(), anchoredCandidate(t, svc, snap, "acme", "offers", "same-day delivery", 0, 9)); err != nil {
		t.Fatal(err)
	}

	text := callTool(t, session, "precogs_validate", map[string]any{
		"domain":     testDomain,
		"source_url": testURL,
	})
	var report Report
	if err := json.Unmarshal([]byte(text), &report); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if report.Validated != 1 || report.Passed != 1 {
		t.Fatalf("report = %+v", report)
	}
}

// --- precogs_stats ---

func TestMCP_Stats(t *testing.T) {
	svc, session := mcpSession(t)

	text := callTool(t, session, "precogs_stats", map[string]any{})
	var stats Stats
	if err := json.Unmarshal([]byte(text), &stats); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if stats.Snapshots != 0 {
		t.Errorf("Snapshots = %d, want 0", stats.Snapshots)
	}

	putTestSnapshot(t, svc)

	text = callTool(t, session, "precogs_stats", map[string]any{})
	if err := json.Unmarshal([]byte(text), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.Snapshots != 1 {
		t.Errorf("Snapshots = %d, want 1", stats.Snapshots)
	}
}
