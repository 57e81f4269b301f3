package harvester

import "testing"

func TestFingerprintDeterministic(t *testing.T) {
	url := "http://portal.example.org/gateway/srv/it/metadata.show?id=42"

	first := Fingerprint(url)
	second := Fingerprint(url)

	if first != second {
		t.Errorf("fingerprint not stable: %q vs %q", first, second)
	}
	if len(first) != 40 {
		t.Errorf("fingerprint length = %d, want 40 hex chars", len(first))
	}
}

func TestFingerprintDistinguishesURLs(t *testing.T) {
	a := Fingerprint("http://portal.example.org/gateway/srv/it/metadata.show?id=42")
	b := Fingerprint("http://portal.example.org/gateway/srv/it/metadata.show?id=43")

	if a == b {
		t.Error("different detail URLs must not collide")
	}
}
