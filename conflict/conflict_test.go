package conflict

import (
	"strings"
	"testing"

	"github.com/brunobiangulo/acctplan"
)

func chunkFrom(text, docID string, kind acctplan.SourceKind) acctplan.Chunk {
	return acctplan.Chunk{
		Text: text,
		Metadata: acctplan.ChunkMetadata{
			SourceFile: docID,
			SourceKind: kind,
		},
	}
}

func TestDetectConflicts_SameDocumentNeverConflicts(t *testing.T) {
	chunks := []acctplan.Chunk{
		chunkFrom("Revenue was $10 million last year.", "doc1.pdf", acctplan.SourceUploadedDocument),
		chunkFrom("Revenue was $50 million this year.", "doc1.pdf", acctplan.SourceUploadedDocument),
	}
	if got := DetectConflicts(chunks); got != nil {
		t.Fatalf("expected no conflicts within a single document, got %v", got)
	}
}

func TestDetectConflicts_DifferentDocumentsConflictOnRevenue(t *testing.T) {
	chunks := []acctplan.Chunk{
		chunkFrom("Annual revenue was $10 million across the business.", "doc1.pdf", acctplan.SourceUploadedDocument),
		chunkFrom("Annual revenue was $50 million across the business.", "", acctplan.SourceWebSearch),
	}
	chunks[1].Metadata.URL = "https://news.example.com/acme"

	conflicts := DetectConflicts(chunks)
	if len(conflicts) == 0 {
		t.Fatalf("expected a revenue conflict between distinct documents")
	}
	found := false
	for _, c := range conflicts {
		if c.Topic == "revenue" {
			found = true
			if c.Severity != acctplan.SeverityHigh {
				t.Fatalf("expected high severity for revenue conflict, got %v", c.Severity)
			}
		}
	}
	if !found {
		t.Fatalf("expected revenue topic in conflicts: %v", conflicts)
	}
}

func TestDetectConflicts_SmallRevenueDifferenceIsNotSignificant(t *testing.T) {
	chunks := []acctplan.Chunk{
		chunkFrom("Annual revenue was $100 million across the business.", "doc1.pdf", acctplan.SourceUploadedDocument),
		chunkFrom("Annual revenue was $102 million across the business.", "doc2.pdf", acctplan.SourceUploadedDocument),
	}
	conflicts := DetectConflicts(chunks)
	for _, c := range conflicts {
		if c.Topic == "revenue" {
			t.Fatalf("expected small revenue difference to be filtered out, got conflict: %v", c)
		}
	}
}

func TestFormatMessage_HasNoURLsAndEndsWithPrompt(t *testing.T) {
	c := acctplan.Conflict{
		Topic:             "revenue",
		ConflictingValues: []string{"10000000", "50000000"},
		Sources: []acctplan.ConflictSourceValue{
			{Value: "10000000", SourceKind: string(acctplan.SourceUploadedDocument), SourceFileOrURL: "acme_10k.pdf"},
			{Value: "50000000", SourceKind: string(acctplan.SourceWebSearch), SourceFileOrURL: "https://news.example.com/acme"},
		},
	}
	msg := FormatMessage(c)
	if strings.Contains(msg, "http") {
		t.Fatalf("expected no URLs in conflict message, got %q", msg)
	}
	if !strings.Contains(msg, "dig deeper") {
		t.Fatalf("expected resolution prompt, got %q", msg)
	}
	if !strings.Contains(msg, "Uploaded document") || !strings.Contains(msg, "Web research source") {
		t.Fatalf("expected friendly source labels, got %q", msg)
	}
}
