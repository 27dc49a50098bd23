package jsontime

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDurationMarshalsAsString(t *testing.T) {
	data, err := json.Marshal(Duration(90 * time.Minute))
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if string(data) != `"1h30m0s"` {
		t.Errorf("Marshal = %s, want %q", data, "1h30m0s")
	}
}

func TestDurationUnmarshalForms(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{`"2h30m"`, 2*time.Hour + 30*time.Minute},
		{`"150ms"`, 150 * time.Millisecond},
		{`5000000000`, 5 * time.Second}, // int64 nanoseconds
		{`null`, 0},
	}
	for _, c := range cases {
		var d Duration
		if err := json.Unmarshal([]byte(c.in), &d); err != nil {
			t.Fatalf("Unmarshal(%s) error: %v", c.in, err)
		}
		if time.Duration(d) != c.want {
			t.Errorf("Unmarshal(%s) = %v, want %v", c.in, time.Duration(d), c.want)
		}
	}

	var d Duration
	if err := json.Unmarshal([]byte(`"not a duration"`), &d); err == nil {
		t.Error("bad duration string should error")
	}
}

func TestDurationInResultEnvelope(t *testing.T) {
	type result struct {
		Took    Duration  `json:"took"`
		Backoff *Duration `json:"backoff,omitempty"`
	}
	original := result{
		Took:    Duration(1200 * time.Millisecond),
		Backoff: FromDuration(5 * time.Second),
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	var restored result
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if restored.Took != original.Took {
		t.Errorf("Took = %v, want %v", restored.Took, original.Took)
	}
	if restored.Backoff.Duration() != original.Backoff.Duration() {
		t.Errorf("Backoff = %v, want %v", restored.Backoff.Duration(), original.Backoff.Duration())
	}
}

func TestDurationAccessors(t *testing.T) {
	d := Duration(90 * time.Minute)
	if d.String() != "1h30m0s" {
		t.Errorf("String() = %q", d.String())
	}
	if d.Seconds() != 5400 {
		t.Errorf("Seconds() = %v, want 5400", d.Seconds())
	}
	if d.Milliseconds() != 5400000 {
		t.Errorf("Milliseconds() = %v, want 5400000", d.Milliseconds())
	}
	var nilD *Duration
	if nilD.Duration() != 0 {
		t.Error("nil Duration() should return 0")
	}
}
