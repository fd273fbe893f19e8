package entity

import (
	"testing"

	"github.com/brunobiangulo/acctplan"
)

func TestExtract_Revenue(t *testing.T) {
	text := "Last year revenue was $4.2 million across all business units."
	e := Extract(text)
	if got := e.First(acctplan.EntityRevenue); got != "4.2" {
		t.Fatalf("expected revenue 4.2, got %q", got)
	}
}

func TestExtract_Employees(t *testing.T) {
	text := "The company employs 1,200 employees worldwide."
	e := Extract(text)
	vals := e.Get(acctplan.EntityEmployees)
	if len(vals) == 0 {
		t.Fatalf("expected at least one employee count, got none")
	}
}

func TestExtract_MarketCap(t *testing.T) {
	text := "Acme is currently valued at $3.1 billion by analysts."
	e := Extract(text)
	if got := e.First(acctplan.EntityMarketCap); got != "3.1" {
		t.Fatalf("expected market cap 3.1, got %q", got)
	}
}

func TestExtract_People(t *testing.T) {
	text := "CEO Jane Doe announced the new product line at the conference."
	e := Extract(text)
	if got := e.First(acctplan.EntityPeople); got != "Jane Doe" {
		t.Fatalf("expected person Jane Doe, got %q", got)
	}
}

func TestExtract_ProductsByKeyword(t *testing.T) {
	text := "Acme offers a broad range of enterprise widgets. It has no other business."
	e := Extract(text)
	if len(e.Get(acctplan.EntityProducts)) == 0 {
		t.Fatalf("expected a product phrase to be extracted")
	}
}

func TestExtract_NoMatchesReturnsEmptyMap(t *testing.T) {
	e := Extract("nothing interesting here at all")
	if len(e) != 0 {
		t.Fatalf("expected no entities extracted, got %v", e)
	}
}

func TestGuessCompanyName(t *testing.T) {
	if got := GuessCompanyName("Acme Corp. is a leading widget manufacturer."); got != "Acme" {
		t.Fatalf("expected Acme, got %q", got)
	}
	if got := GuessCompanyName("no company mentioned here"); got != "" {
		t.Fatalf("expected empty guess, got %q", got)
	}
}
