package enums

import "testing"

func TestParseDeviceStatus(t *testing.T) {
	status, err := ParseDeviceStatus(" Broken ")
	if err != nil || status != DeviceStatusBroken {
		t.Fatalf("expected broken, got %q err=%v", status, err)
	}
	if _, err := ParseDeviceStatus("lost"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestParseImportMode(t *testing.T) {
	mode, err := ParseImportMode("CREATE_ONLY")
	if err != nil || mode != ImportModeCreateOnly {
		t.Fatalf("expected create_only, got %q err=%v", mode, err)
	}
	if _, err := ParseImportMode(""); err == nil {
		t.Fatal("expected error for blank mode")
	}
}

func TestOutboxEnumsRoundTrip(t *testing.T) {
	for _, e := range validOutboxEventTypes {
		parsed, err := ParseOutboxEventType(string(e))
		if err != nil || parsed != e {
			t.Fatalf("event %q did not parse", e)
		}
	}
	if _, err := ParseOutboxAggregateType("store"); err == nil {
		t.Fatal("expected error for unknown aggregate")
	}
}
