package validation

import "testing"

func TestValidateSegmentName(t *testing.T) {
	valid := []string{"segment_000.ts", "segment_042.ts", "segment_999.ts"}
	for _, name := range valid {
		if err := ValidateSegmentName(name); err != nil {
			t.Errorf("expected %q to be valid: %v", name, err)
		}
	}

	invalid := []string{
		"",
		"segment_1.ts",
		"segment_0000.ts",
		"segment_abc.ts",
		"segment_000.mp4",
		"segment_000.ts.bak",
		"../segment_000.ts",
		"../../etc/passwd",
		"/etc/passwd",
		"segment_000.ts/..",
		"index.m3u8",
		"segment_000.TS",
	}
	for _, name := range invalid {
		if err := ValidateSegmentName(name); err == nil {
			t.Errorf("expected %q to be rejected", name)
		}
	}
}

func TestValidateCameraID(t *testing.T) {
	for _, id := range []string{"cam-1", "CAM_42", "a", "store.7-cam"} {
		if err := ValidateCameraID(id); err != nil {
			t.Errorf("expected %q to be valid: %v", id, err)
		}
	}
	for _, id := range []string{"", "-leading", "has space", "slash/es", "a/../b"} {
		if err := ValidateCameraID(id); err == nil {
			t.Errorf("expected %q to be rejected", id)
		}
	}
}

func TestValidateSessionID(t *testing.T) {
	if err := ValidateSessionID("3b241101-e2bb-4255-8caf-4136c566a962"); err != nil {
		t.Errorf("uuid session ids must be valid: %v", err)
	}
	if err := ValidateSessionID("../../outside"); err == nil {
		t.Error("traversal-shaped session id must be rejected")
	}
}
