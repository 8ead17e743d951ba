package version

import "testing"

func TestDefaultsForLocalBuild(t *testing.T) {
	v, c, d := Info()
	if v != "dev" || c != "unknown" || d != "unknown" {
		t.Fatalf("unexpected defaults: %s %s %s", v, c, d)
	}
	if GetVersion() != v || GetCommit() != c || GetDate() != d {
		t.Fatal("getters must agree with Info")
	}
}

func TestStringUsesLdflagsValues(t *testing.T) {
	prevVersion, prevCommit, prevDate := version, commit, date
	t.Cleanup(func() { version, commit, date = prevVersion, prevCommit, prevDate })

	// Так значения проставляет -ldflags "-X .../internal/version.version=...".
	version, commit, date = "1.4.0", "3f9c2e1", "2026-10-01T12:00:00Z"

	if got, want := String(), "version=1.4.0 commit=3f9c2e1 date=2026-10-01T12:00:00Z"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
	if GetVersion() != "1.4.0" {
		t.Fatalf("GetVersion() = %q", GetVersion())
	}
}
