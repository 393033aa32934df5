package output

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestJSONWriter(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JSONWriter{}).Write(&buf, sampleResult()); err != nil {
		t.Fatalf("Write error: %v", err)
	}

	var parsed map[string]any
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed["verdict"] != "request-changes" {
		t.Errorf("verdict = %v, want request-changes", parsed["verdict"])
	}
	if parsed["runId"] != "4f1c9a2e-0000-4000-8000-000000000001" {
		t.Errorf("runId = %v", parsed["runId"])
	}
	findings, ok := parsed["findings"].([]any)
	if !ok || len(findings) != 2 {
		t.Fatalf("findings = %v, want 2 entries", parsed["findings"])
	}
	first := findings[0].(map[string]any)
	if first["path"] != "main.go" || first["line"] != float64(10) {
		t.Errorf("first finding = %v", first)
	}
	summary := parsed["summary"].(map[string]any)
	counts := summary["counts"].(map[string]any)
	if counts["high"] != float64(1) || counts["low"] != float64(1) {
		t.Errorf("counts = %v", counts)
	}
}

func TestJSONWriter_EmptyFindingsIsArray(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JSONWriter{}).Write(&buf, approvedResult()); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"findings": []`)) {
		t.Errorf("findings should encode as an empty array:\n%s", buf.String())
	}
}
