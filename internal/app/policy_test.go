package app

import "testing"

func TestParseAdmission(t *testing.T) {
	cases := map[string]AdmissionAction{
		"":         RejectNew,
		"reject":   RejectNew,
		" Replace": ReplaceActive,
	}
	for in, want := range cases {
		got, err := ParseAdmission(in)
		if err != nil {
			t.Fatalf("ParseAdmission(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseAdmission(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseAdmission("queue"); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}

func TestSimplePolicyBackpressure(t *testing.T) {
	p := SimplePolicy{}
	if p.OnBackPressure("generic-value-change") != DropFrame {
		t.Fatal("value changes should be dropped")
	}
	if p.OnBackPressure("call-status-change") != CloseConn {
		t.Fatal("status changes should close the connection")
	}
	if p.OnIncoming("a", "b") != RejectNew {
		t.Fatal("zero policy should reject")
	}
}
