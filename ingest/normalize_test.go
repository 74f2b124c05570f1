package ingest

import "testing"

func TestNormalize_Customer(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Acme AB", "acme"},
		{"ACME Aktiebolag", "acme"},
		{"Acme-Consulting_AB", "acme consulting"},
		{"Nordic Tools Ltd.", "nordic tools"},
		{"H&M", "h m"},
		{"Parkering P", "parkering p"}, // one-letter strip is supplier-only
		{"", ""},
		{"   ", ""},
	}
	for _, c := range cases {
		if got := CustomerNames.Normalize(c.in); got != c.want {
			t.Fatalf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalize_SupplierStripsNoise(t *testing.T) {
	cases := []struct{ in, want string }{
		{"ICA Kvitto Januari", "ica"},
		{"Blomsterlandet Jan", "blomsterlandet"},
		{"Telia Faktura", "telia"},
		{"Parkering P", "parkering"},
		// The one-letter strip runs after the noise strip.
		{"Circle K Utlägg", "circle"},
	}
	for _, c := range cases {
		if got := SupplierNames.Normalize(c.in); got != c.want {
			t.Fatalf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestCoreName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Acme Consulting Nordic AB", "acme consulting"},
		{"Acme AB", "acme"},
		{"H&M", ""}, // no tokens of length >= 2
		{"X Y", ""},
		{"", ""},
	}
	for _, c := range cases {
		if got := CustomerNames.CoreName(c.in); got != c.want {
			t.Fatalf("CoreName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
