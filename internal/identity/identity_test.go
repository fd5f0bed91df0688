package identity

import "testing"

func TestNormalizeEquivalentForms(t *testing.T) {
	// All raw shapes the transport may use for the same logical party.
	forms := []string{
		"5511999999999",
		"+55 11 99999-9999",
		"5511999999999@s.whatsapp.net",
		"5511999999999@c.us",
		"5511999999999:3@s.whatsapp.net",
		"555511999999999@s.whatsapp.net", // doubled country prefix
	}
	want := "5511999999999"
	for _, raw := range forms {
		got := Normalize(raw)
		if got.Unresolved {
			t.Errorf("Normalize(%q) unresolved, want resolved", raw)
			continue
		}
		if got.ContactID != want {
			t.Errorf("Normalize(%q) = %q, want %q", raw, got.ContactID, want)
		}
	}
}

func TestNormalizeDistinctPartiesStayDistinct(t *testing.T) {
	a := Normalize("5511999999999@s.whatsapp.net")
	b := Normalize("5511888888888@s.whatsapp.net")
	if a.ContactID == b.ContactID {
		t.Errorf("distinct parties normalized to same id %q", a.ContactID)
	}
}

func TestNormalizeUnresolvedForms(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"group", "12036304987654321@g.us"},
		{"broadcast", "status@broadcast"},
		{"newsletter", "12345@newsletter"},
		{"hidden user", "98765432101234@lid"},
		{"alphabetic", "not-a-number"},
		{"too short", "1234"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.raw)
			if !got.Unresolved {
				t.Errorf("Normalize(%q) = %q resolved, want unresolved", tt.raw, got.ContactID)
			}
		})
	}
}

// Unresolved forms must keep distinct stable ids: flagged, never merged.
func TestNormalizeUnresolvedStableAndDistinct(t *testing.T) {
	g1a := Normalize("111@g.us")
	g1b := Normalize("111@g.us")
	g2 := Normalize("222@g.us")
	if g1a.ContactID != g1b.ContactID {
		t.Errorf("same unresolved form got different ids: %q vs %q", g1a.ContactID, g1b.ContactID)
	}
	if g1a.ContactID == g2.ContactID {
		t.Errorf("distinct unresolved forms merged into %q", g1a.ContactID)
	}
}

func TestNormalizeIsDeterministic(t *testing.T) {
	raw := "5511999999999:27@s.whatsapp.net"
	first := Normalize(raw)
	for i := 0; i < 3; i++ {
		if got := Normalize(raw); got != first {
			t.Fatalf("Normalize(%q) not deterministic: %v vs %v", raw, got, first)
		}
	}
}

func TestJID(t *testing.T) {
	if got := JID("5511999999999"); got != "5511999999999@s.whatsapp.net" {
		t.Errorf("JID = %q", got)
	}
}

func TestDedupCountryPrefixLeavesValidNumbersAlone(t *testing.T) {
	// "5555" prefix on an already-valid-length number is not touched:
	// it could legitimately be a number in country 55 starting with 55.
	got := Normalize("555511999999")
	if got.Unresolved || got.ContactID != "555511999999" {
		t.Errorf("Normalize(555511999999) = %+v, want untouched", got)
	}
}
