package delta

import (
	"testing"
)

const reply = `You bury yourself in the library stacks until closing.

[STATS]
Attribute changes: intelligence+2, stress-1
Relationship changes: Professor Okafor+5, Jamie-2
[/STATS]`

func TestParseReadsBothChangeLines(t *testing.T) {
	deltas := Parse(reply)

	if deltas.Attributes["intelligence"] != 2 {
		t.Fatalf("expected intelligence+2, got %v", deltas.Attributes)
	}
	if deltas.Attributes["stress"] != -1 {
		t.Fatalf("expected stress-1, got %v", deltas.Attributes)
	}
	if deltas.Relationships["Professor Okafor"] != 5 {
		t.Fatalf("expected Professor Okafor+5, got %v", deltas.Relationships)
	}
	if deltas.Relationships["Jamie"] != -2 {
		t.Fatalf("expected Jamie-2, got %v", deltas.Relationships)
	}
}

func TestParseMissingBlockYieldsEmptySet(t *testing.T) {
	deltas := Parse("The professor nods and moves on to the next student.")
	if !deltas.Empty() {
		t.Fatalf("expected empty delta set, got %+v", deltas)
	}
}

func TestParseUnterminatedBlockYieldsEmptySet(t *testing.T) {
	deltas := Parse("Something happens.\n[STATS]\nAttribute changes: focus+1")
	if !deltas.Empty() {
		t.Fatalf("expected empty delta set, got %+v", deltas)
	}
}

func TestParseSkipsMalformedTokens(t *testing.T) {
	deltas := Parse(`[STATS]
Attribute changes: intelligence+2, luck, charm++3, focus+abc, stress-1
[/STATS]`)

	if len(deltas.Attributes) != 3 {
		t.Fatalf("expected 3 valid tokens, got %v", deltas.Attributes)
	}
	if deltas.Attributes["intelligence"] != 2 || deltas.Attributes["stress"] != -1 {
		t.Fatalf("unexpected values: %v", deltas.Attributes)
	}
	// "charm++3" parses as name "charm+" which normalizes but stays a
	// distinct key; the contract only promises digits after the sign.
	if _, ok := deltas.Attributes["charm+"]; !ok {
		t.Fatalf("expected charm+ token kept, got %v", deltas.Attributes)
	}
}

func TestParseNormalizesAttributeNames(t *testing.T) {
	deltas := Parse(`[STATS]
Attribute changes: Stage  Presence+3, COMPOSURE-2
[/STATS]`)

	if deltas.Attributes["stage_presence"] != 3 {
		t.Fatalf("expected stage_presence+3, got %v", deltas.Attributes)
	}
	if deltas.Attributes["composure"] != -2 {
		t.Fatalf("expected composure-2, got %v", deltas.Attributes)
	}
}

func TestParseKeepsNPCNamesVerbatim(t *testing.T) {
	deltas := Parse(`[STATS]
Relationship changes: Director Hale+4
[/STATS]`)

	if deltas.Relationships["Director Hale"] != 4 {
		t.Fatalf("expected verbatim NPC name, got %v", deltas.Relationships)
	}
	if _, ok := deltas.Relationships["director_hale"]; ok {
		t.Fatal("NPC names must not be normalized")
	}
}

func TestParseIgnoresNonePlaceholder(t *testing.T) {
	deltas := Parse(`[STATS]
Attribute changes: none
Relationship changes: None
[/STATS]`)

	if !deltas.Empty() {
		t.Fatalf("expected empty delta set, got %+v", deltas)
	}
}

func TestStripBlockRemovesStatsFromNarrative(t *testing.T) {
	cleaned := StripBlock(reply)

	if cleaned != "You bury yourself in the library stacks until closing." {
		t.Fatalf("unexpected cleaned narrative: %q", cleaned)
	}
}

func TestStripBlockWithoutBlockReturnsTrimmedText(t *testing.T) {
	cleaned := StripBlock("  Just a story beat.  ")
	if cleaned != "Just a story beat." {
		t.Fatalf("unexpected cleaned narrative: %q", cleaned)
	}
}
