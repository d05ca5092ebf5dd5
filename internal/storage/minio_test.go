package storage

import (
	"regexp"
	"testing"
)

func TestObjectPaths(t *testing.T) {
	if got := AvatarPath("u-1", "Me.PNG"); got != "users/u-1/avatar.png" {
		t.Fatalf("AvatarPath() = %q", got)
	}
	if got := LogoPath("o-1", "logo"); got != "organizations/o-1/logo.bin" {
		t.Fatalf("LogoPath() = %q", got)
	}

	pattern := regexp.MustCompile(`^o-1/n-1/[0-9a-f-]{36}-contract_v2.pdf$`)
	if got := AttachmentPath("o-1", "n-1", "contract v2.pdf"); !pattern.MatchString(got) {
		t.Fatalf("AttachmentPath() = %q", got)
	}
	if AttachmentPath("o", "n", "a.txt") == AttachmentPath("o", "n", "a.txt") {
		t.Fatal("attachment paths must be unique per upload")
	}
}

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"../../etc/passwd":   "passwd",
		`C:\docs\report.pdf`: "report.pdf",
		"relatório final.docx": "relat_rio_final.docx",
		"...":                "file",
	}
	for in, want := range cases {
		if got := SanitizeFileName(in); got != want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPublicURL(t *testing.T) {
	if got := PublicURL("minio:9000", false, "avatars", "users/u/avatar.png"); got != "http://minio:9000/avatars/users/u/avatar.png" {
		t.Fatalf("PublicURL() = %q", got)
	}
	if got := PublicURL("s3.example.com", true, "b", "k"); got != "https://s3.example.com/b/k" {
		t.Fatalf("PublicURL() = %q", got)
	}
}
