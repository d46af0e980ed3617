package scenfile

import "testing"

func TestParse_Basic(t *testing.T) {
	src := `description, handles-states=true, summary="a scenario";
set-state, state=playing;
seek, playback-time=1.0, start=5.0, flags=accurate+flush;
stop, playback-time=10.0;
`
	structs, err := Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	if len(structs) != 4 {
		t.Fatalf("expected 4 structures, got %d: %+v", len(structs), structs)
	}
	if structs[0].Name != "description" {
		t.Errorf("got name %q", structs[0].Name)
	}
	if v, _ := structs[0].Field("handles-states"); v != true {
		t.Errorf("handles-states = %v", v)
	}
	if v, _ := structs[0].Field("summary"); v != "a scenario" {
		t.Errorf("summary = %v", v)
	}
	if v, _ := structs[2].Field("start"); v != 5.0 {
		t.Errorf("start = %v", v)
	}
}

func TestParse_CommentsAndContinuation(t *testing.T) {
	src := "wait, \\\n  duration=1.0; # inline comment\n"
	structs, err := Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	if len(structs) != 1 {
		t.Fatalf("expected 1 structure, got %d", len(structs))
	}
	if v, _ := structs[0].Field("duration"); v != 1.0 {
		t.Errorf("duration = %v", v)
	}
}

func TestParse_List(t *testing.T) {
	src := `switch-track, expected=[A0, A1];`
	structs, err := Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	v, ok := structs[0].Field("expected")
	if !ok {
		t.Fatal("missing field")
	}
	list, ok := v.([]any)
	if !ok || len(list) != 2 {
		t.Fatalf("expected 2-element list, got %#v", v)
	}
	if list[0] != "A0" || list[1] != "A1" {
		t.Errorf("got %#v", list)
	}
}

func TestParse_TypeCast(t *testing.T) {
	src := `set-property, property-value=(int)5;`
	structs, err := Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	v, _ := structs[0].Field("property-value")
	if v != 5.0 {
		t.Errorf("got %#v", v)
	}
}

func TestParse_MalformedFieldError(t *testing.T) {
	_, err := Parse(`seek, start;`)
	if err == nil {
		t.Fatal("expected parse error for missing '='")
	}
}
