package extract

import "testing"

func TestHedged(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"I think the deadline moved to Friday", true},
		{"Maybe we should involve legal", true},
		{"Not sure who owns the migration", true},
		{"The deadline moved to Friday", false},
		{"Deployment completed at 14:00", false},
	}
	for _, tc := range cases {
		if got := Hedged(tc.text); got != tc.want {
			t.Errorf("Hedged(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestDampenConfidence_Hedged(t *testing.T) {
	bodies := []string{"I think the vendor will deliver next week"}

	got := DampenConfidence(0.9, bodies)
	if got >= 0.5 {
		t.Errorf("hedged confidence = %v, want < 0.5", got)
	}
	if got != hedgeCap {
		t.Errorf("0.9 halves to 0.45 via the cap, got %v", got)
	}

	// Below the cap the halving alone applies.
	if got := DampenConfidence(0.6, bodies); got != 0.3 {
		t.Errorf("DampenConfidence(0.6) = %v, want 0.3", got)
	}
}

func TestDampenConfidence_Unhedged(t *testing.T) {
	bodies := []string{"The vendor confirmed delivery for Monday"}
	if got := DampenConfidence(0.9, bodies); got != 0.9 {
		t.Errorf("unhedged confidence changed: %v", got)
	}
}
