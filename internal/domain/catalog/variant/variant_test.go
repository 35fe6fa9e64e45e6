package variant

import "testing"

func TestParseKey(t *testing.T) {
	tests := []struct {
		token  string
		kind   KeyKind
		wantID int64
	}{
		{"42", ByNumber, 42},
		{"00000042", ByNumber, 42},
		{"ntr:var:00000042", ByUID, 0},
		{"roma-denarius-ar", BySlug, 0},
		{"42a", BySlug, 0},
		{"99999999999999999999999", BySlug, 0},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			k, err := ParseKey(tt.token)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if k.Kind() != tt.kind {
				t.Errorf("Kind() = %d, want %d", k.Kind(), tt.kind)
			}
			if k.ID() != tt.wantID {
				t.Errorf("ID() = %d, want %d", k.ID(), tt.wantID)
			}
			if k.Token() != tt.token {
				t.Errorf("Token() = %q", k.Token())
			}
		})
	}
}

func TestParseKey_Empty(t *testing.T) {
	if _, err := ParseKey(""); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestKeyUID(t *testing.T) {
	k, _ := ParseKey("42")
	if got := k.UID(); got != "ntr:var:00000042" {
		t.Errorf("UID() = %q", got)
	}
}

func TestImageURLs(t *testing.T) {
	u := ImageURLs{
		Root:       "https://numis.example/",
		ViewerPath: "/index.php?option=com_numistr&view=gorsel",
	}

	if got := u.URL(7, 1, false); got != "/index.php?option=com_numistr&view=gorsel&id=7&wm=1" {
		t.Errorf("relative URL = %q", got)
	}
	if got := u.URL(7, 0, true); got != "https://numis.example/index.php?option=com_numistr&view=gorsel&id=7&wm=0" {
		t.Errorf("absolute URL = %q", got)
	}

	bare := ImageURLs{ViewerPath: "/img"}
	if got := bare.URL(3, 1, false); got != "/img?id=3&wm=1" {
		t.Errorf("bare URL = %q", got)
	}
}

func TestTitle(t *testing.T) {
	langs := []string{"tr", "en"}

	tests := []struct {
		name string
		row  Row
		want string
	}{
		{"turkish", Row{"title_tr": "Denaryus", "title_en": "Denarius", "slug": "d"}, "Denaryus"},
		{"english fallback", Row{"title_tr": "  ", "title_en": "Denarius", "slug": "d"}, "Denarius"},
		{"null turkish", Row{"title_tr": nil, "title_en": "Denarius"}, "Denarius"},
		{"slug fallback", Row{"slug": "roma-denarius"}, "roma-denarius"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Title(tt.row, langs); got != tt.want {
				t.Errorf("Title() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRowAccessors(t *testing.T) {
	r := Row{"a": int32(5), "b": "17", "c": []byte("x"), "d": nil}

	if r.Int64("a") != 5 || r.Int64("b") != 17 || r.Int64("d") != 0 {
		t.Errorf("unexpected Int64 values")
	}
	if r.String("c") != "x" || r.String("d") != "" || r.String("missing") != "" {
		t.Errorf("unexpected String values")
	}
}
