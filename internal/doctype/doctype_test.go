package doctype

import "testing"

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"application/pdf":                 PDF,
		"Application/PDF; charset=binary": PDF,
		"image/jpg":                       JPEG,
		" image/png ":                     PNG,
		"":                                "",
		"text/plain":                      "text/plain",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAllowed(t *testing.T) {
	for _, ct := range []string{PDF, JPEG, PNG, DOCX, "image/jpg"} {
		if !Allowed(ct) {
			t.Fatalf("expected %q to be allowed", ct)
		}
	}
	for _, ct := range []string{"text/plain", "image/gif", ""} {
		if Allowed(ct) {
			t.Fatalf("expected %q to be rejected", ct)
		}
	}
}

func TestResolveSniffsOnlyWithoutDeclaredType(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	if got := Resolve("", png); got != PNG {
		t.Fatalf("Resolve(empty) = %q, want %q", got, PNG)
	}
	if got := Resolve("application/octet-stream", []byte("%PDF-1.4\n")); got != PDF {
		t.Fatalf("Resolve(octet-stream) = %q, want %q", got, PDF)
	}
	// 申告された型は内容より優先する
	if got := Resolve("text/plain", png); got != "text/plain" {
		t.Fatalf("Resolve(text/plain) = %q, want text/plain", got)
	}
}
