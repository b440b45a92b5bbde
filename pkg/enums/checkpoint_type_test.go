package enums

import "testing"

func TestEveryCheckpointTargetsValidStatus(t *testing.T) {
	for checkpoint, target := range checkpointTargets {
		if !target.IsValid() {
			t.Fatalf("checkpoint %s targets unknown status %s", checkpoint, target)
		}
	}
}

func TestParseCheckpointType(t *testing.T) {
	checkpoint, err := ParseCheckpointType("return-to-origin")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	target, ok := checkpoint.TargetStatus()
	if !ok {
		t.Fatalf("expected target status")
	}
	if target != DropStatusReady {
		t.Fatalf("return-to-origin should target ready, got %s", target)
	}
}

func TestParseCheckpointTypeUnknown(t *testing.T) {
	if _, err := ParseCheckpointType("teleport"); err == nil {
		t.Fatalf("expected error for unknown checkpoint type")
	}
}
