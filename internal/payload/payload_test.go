package payload

import (
	"testing"
)

func mustParse(t *testing.T, data string) *Value {
	t.Helper()
	v, err := FromJSON([]byte(data))
	if err != nil {
		t.Fatalf("FromJSON(%s): %v", data, err)
	}
	return v
}

func TestFromJSON_RoundTrip(t *testing.T) {
	tests := []string{
		`null`,
		`"hello"`,
		`42`,
		`3.25`,
		`true`,
		`{"a":1,"b":"two","c":[true,null]}`,
		`[{"nested":{"deep":"value"}}]`,
	}
	for _, src := range tests {
		v := mustParse(t, src)
		out, err := v.JSON()
		if err != nil {
			t.Fatalf("JSON(%s): %v", src, err)
		}
		if string(out) != src {
			t.Errorf("round trip of %s produced %s", src, out)
		}
	}
}

func TestFromJSON_Invalid(t *testing.T) {
	if _, err := FromJSON([]byte(`{"broken`)); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestReplaceStrings_ReplacesMatches(t *testing.T) {
	v := mustParse(t, `{"token":"live-secret","nested":{"items":["live-secret","other"]},"n":5}`)

	replaced := v.ReplaceStrings(func(s string) (string, bool) {
		if s == "live-secret" {
			return "***EXPOSED***", true
		}
		return "", false
	})
	if !replaced {
		t.Fatal("expected a replacement to be reported")
	}

	out, err := v.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	want := `{"n":5,"nested":{"items":["***EXPOSED***","other"]},"token":"***EXPOSED***"}`
	if string(out) != want {
		t.Fatalf("got %s, want %s", out, want)
	}
}

func TestReplaceStrings_NoMatch(t *testing.T) {
	v := mustParse(t, `{"a":"x"}`)
	replaced := v.ReplaceStrings(func(string) (string, bool) { return "", false })
	if replaced {
		t.Fatal("expected no replacement")
	}
}

func TestMaskFields(t *testing.T) {
	v := mustParse(t, `{"key":"API_KEY","value":"plaintext","nested":{"token":"raw","keep":"yes"},"list":[{"value":"also"}]}`)

	v.MaskFields(map[string]bool{"value": true, "token": true}, "***REDACTED***")

	out, err := v.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	want := `{"key":"API_KEY","list":[{"value":"***REDACTED***"}],"nested":{"keep":"yes","token":"***REDACTED***"},"value":"***REDACTED***"}`
	if string(out) != want {
		t.Fatalf("got %s, want %s", out, want)
	}
}

func TestMaskFields_NonStringValues(t *testing.T) {
	v := mustParse(t, `{"value":{"inner":"hidden"}}`)
	v.MaskFields(map[string]bool{"value": true}, "***REDACTED***")

	out, _ := v.JSON()
	if string(out) != `{"value":"***REDACTED***"}` {
		t.Fatalf("got %s", out)
	}
}

func TestClone_Independent(t *testing.T) {
	v := mustParse(t, `{"a":["x"]}`)
	c := v.Clone()

	v.Obj["a"].Arr[0].Str = "mutated"

	out, _ := c.JSON()
	if string(out) != `{"a":["x"]}` {
		t.Fatalf("clone was mutated: %s", out)
	}
}
