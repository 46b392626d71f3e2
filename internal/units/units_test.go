package units

import "testing"

func TestSimpleFootToMillimeter(t *testing.T) {
	c, err := Simple("FOOT", "MILLIMETER")
	if err != nil {
		t.Fatalf("Simple: %v", err)
	}
	got := c.Convert(1)
	if got != 304.8 {
		t.Errorf("1 FOOT in MILLIMETER = %v, want 304.8", got)
	}
}

func TestSimpleSameUnitIsIdentity(t *testing.T) {
	c, err := Simple("MILLIMETER", "MILLIMETER")
	if err != nil {
		t.Fatalf("Simple: %v", err)
	}
	if c.Convert(42) != 42 {
		t.Errorf("identity conversion changed value: %v", c.Convert(42))
	}
}

func TestSimpleUnknownUnit(t *testing.T) {
	if _, err := Simple("FOOT", "KELVIN"); err == nil {
		t.Error("expected error for unrelated unit dimensions")
	}
}

func TestCompoundGramInchToKilogramMillimeter(t *testing.T) {
	c, err := Compound("GRAM", "INCH", "KILOGRAM", "MILLIMETER")
	if err != nil {
		t.Fatalf("Compound: %v", err)
	}
	// 1 GRAM/INCH = 0.001 KILOGRAM / 25.4 MILLIMETER
	want := 0.001 / 25.4
	got := c.Convert(1)
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("1 GRAM/INCH in KILOGRAM/MILLIMETER = %v, want %v", got, want)
	}
}
