package model

import "testing"

func sampleFactory() *Factory {
	return NewFactory("Sample",
		Requirement{Name: "dataItemId", Type: KindString, Required: true},
		Requirement{Name: ValueProperty, Type: KindDouble, Required: true},
		Requirement{Name: "subType", Type: KindString, Vocabulary: []string{"ACTUAL", "COMMANDED"}},
	)
}

func TestFactoryValidateCoercesStrings(t *testing.T) {
	f := sampleFactory()
	e := NewEntity("Sample")
	e.Set("dataItemId", StringValue("X"))
	e.Set(ValueProperty, StringValue("304.8")) // wire-parsed as string; must coerce to double

	out, errs := f.Validate(e)
	if errs.HasErrors() {
		t.Fatalf("unexpected errors: %v", errs.Errors)
	}
	v := out.Value()
	if v.Kind != KindDouble || v.Float != 304.8 {
		t.Errorf("VALUE = %+v, want double 304.8", v)
	}
}

func TestFactoryValidateMissingRequired(t *testing.T) {
	f := sampleFactory()
	e := NewEntity("Sample")
	e.Set("dataItemId", StringValue("X"))

	_, errs := f.Validate(e)
	if !errs.HasErrors() {
		t.Fatal("expected error for missing required VALUE property")
	}
}

func TestFactoryValidateUnknownProperty(t *testing.T) {
	f := sampleFactory()
	e := NewEntity("Sample")
	e.Set("dataItemId", StringValue("X"))
	e.Set(ValueProperty, StringValue("1.0"))
	e.Set("bogus", StringValue("nope"))

	_, errs := f.Validate(e)
	if !errs.HasErrors() {
		t.Fatal("expected error for unknown property")
	}
}

func TestFactoryValidateVocabulary(t *testing.T) {
	f := sampleFactory()
	e := NewEntity("Sample")
	e.Set("dataItemId", StringValue("X"))
	e.Set(ValueProperty, StringValue("1.0"))
	e.Set("subType", StringValue("BOGUS"))

	_, errs := f.Validate(e)
	if !errs.HasErrors() {
		t.Fatal("expected error for value outside controlled vocabulary")
	}
}

func TestRegistryValidateNamedUnknownEntity(t *testing.T) {
	r := NewRegistry()
	r.Register(sampleFactory())

	_, err := r.ValidateNamed(NewEntity("Nope"))
	if err == nil {
		t.Fatal("expected EntityError for unregistered entity name")
	}
}
