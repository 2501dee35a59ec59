package privacy

import "testing"

func TestClassifier_IsPrivate(t *testing.T) {
	tests := []struct {
		name     string
		patterns string
		group    string
		artifact string
		want     bool
	}{
		{"group matches any artifact", "org.acme", "org.acme", "anything", true},
		{"group does not match other group", "org.acme", "org.acme.sub", "foo", false},
		{"artifact pattern matches", "org.acme:foo", "org.acme", "foo", true},
		{"artifact pattern rejects other artifact", "org.acme:foo", "org.acme", "bar", false},
		{"artifact pattern rejects other group", "org.acme:foo", "com.acme", "foo", false},
		{"second token matches", "com.other;org.acme:foo", "org.acme", "foo", true},
		{"empty tokens ignored", ";;org.acme;", "org.acme", "x", true},
		{"empty pattern matches nothing", "", "", "", false},
		{"malformed token never matches", "org.acme:foo:1.0", "org.acme", "foo", false},
		{"exact equality only", "org.ac", "org.acme", "foo", false},
		{"spaces are part of the token", "com.other; org.acme", "org.acme", "foo", false},
		{"padded artifact token never matches", " org.acme:foo", "org.acme", "foo", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.patterns)
			if got := c.IsPrivate(tt.group, tt.artifact); got != tt.want {
				t.Errorf("IsPrivate(%q, %q) with %q = %v, want %v", tt.group, tt.artifact, tt.patterns, got, tt.want)
			}
		})
	}
}

func TestClassifier_NilMatchesNothing(t *testing.T) {
	var c *Classifier
	if c.IsPrivate("org.acme", "foo") {
		t.Error("nil classifier should not match")
	}
}

func TestNew_Patterns(t *testing.T) {
	got := New("org.acme;;org.acme:foo; x;").Patterns()
	if len(got) != 3 || got[0] != "org.acme" || got[1] != "org.acme:foo" || got[2] != " x" {
		t.Errorf("Patterns() = %q, want [org.acme org.acme:foo \" x\"]", got)
	}
}
