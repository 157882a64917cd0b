package security

import "testing"

func TestHashFingerprint_Deterministic(t *testing.T) {
	a := HashFingerprint(testFingerprint)
	b := HashFingerprint(testFingerprint)
	if a != b {
		t.Error("identical fingerprints produced different hashes")
	}
	if len(a) != 64 {
		t.Errorf("hash length: got %d, want 64 hex chars", len(a))
	}
}

func TestHashFingerprint_Discriminative(t *testing.T) {
	base := HashFingerprint(testFingerprint)
	mutations := map[string]DeviceFingerprint{
		"user agent": func() DeviceFingerprint { f := testFingerprint; f.UserAgent = "other"; return f }(),
		"screen":     func() DeviceFingerprint { f := testFingerprint; f.ScreenResolution = "800x600"; return f }(),
		"timezone":   func() DeviceFingerprint { f := testFingerprint; f.Timezone = "UTC"; return f }(),
		"language":   func() DeviceFingerprint { f := testFingerprint; f.Language = "fr-FR"; return f }(),
		"platform":   func() DeviceFingerprint { f := testFingerprint; f.Platform = "Win32"; return f }(),
	}
	for name, fp := range mutations {
		if HashFingerprint(fp) == base {
			t.Errorf("changing %s did not change the hash", name)
		}
	}
}

func TestHashFingerprint_FieldBoundariesDoNotCollide(t *testing.T) {
	// A delimiter inside a field must not let material shift between
	// adjacent fields.
	a := HashFingerprint(DeviceFingerprint{UserAgent: "a|b", ScreenResolution: ""})
	b := HashFingerprint(DeviceFingerprint{UserAgent: "a", ScreenResolution: "b|"})
	if a == b {
		t.Error("adjacent fields collided across the boundary")
	}
	c := HashFingerprint(DeviceFingerprint{Timezone: "x", Language: "y"})
	d := HashFingerprint(DeviceFingerprint{Timezone: "xy", Language: ""})
	if c == d {
		t.Error("concatenated fields collided across the boundary")
	}
}
