package util

import (
	"regexp"
	"testing"
)

func TestSlugify(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "simple", in: "Acme Corp", want: "acme-corp"},
		{name: "accents", in: "Ótica São João", want: "otica-sao-joao"},
		{name: "trim separators", in: "  --Brand X!! ", want: "brand-x"},
		{name: "digits kept", in: "Team 42", want: "team-42"},
		{name: "symbols only", in: "!!!", want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Slugify(tc.in); got != tc.want {
				t.Fatalf("Slugify(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestWithSuffix(t *testing.T) {
	pattern := regexp.MustCompile(`^acme-corp-[0-9a-z]{6}$`)
	first := WithSuffix("acme-corp")
	if !pattern.MatchString(first) {
		t.Fatalf("WithSuffix() = %q, want acme-corp-<random6>", first)
	}
	if first == "acme-corp" {
		t.Fatal("suffixed slug must differ from the base slug")
	}
}

func TestIDs(t *testing.T) {
	if !IsUUID(NewID()) {
		t.Fatal("NewID() must be a UUID")
	}
	if IsUUID("not-a-uuid") {
		t.Fatal("IsUUID accepted garbage")
	}
	a, b := NewRequestID(), NewRequestID()
	if a == b || len(a) != 26 {
		t.Fatalf("unexpected request ids %q %q", a, b)
	}
	if len(NewToken(32)) != 64 {
		t.Fatal("NewToken(32) must be 64 hex chars")
	}
}
