package phone

import "testing"

func TestFromJID(t *testing.T) {
	cases := map[string]string{
		"5511987654321@s.whatsapp.net":   "5511987654321",
		"5511987654321:7@s.whatsapp.net": "5511987654321",
		"status@broadcast":               "",
		"120363025246125888@g.us":        "",
	}
	for in, want := range cases {
		if got := FromJID(in); got != want {
			t.Fatalf("FromJID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDigitsUsesDefaultRegion(t *testing.T) {
	if got := Digits("(11) 98765-4321"); got != "5511987654321" {
		t.Fatalf("expected BR number, got %q", got)
	}
	if got := Digits("+31 6 12345678"); got != "31612345678" {
		t.Fatalf("expected NL number, got %q", got)
	}
	if got := Digits(""); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}
