package rolekey

import (
	"errors"
	"testing"
)

func TestParseTwoSegments(t *testing.T) {
	key, err := Parse("reporting:read")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key.Namespace != "reporting" || key.Subject != "" || key.Action != "read" {
		t.Fatalf("unexpected key: %+v", key)
	}
}

func TestParseThreeSegments(t *testing.T) {
	key, err := Parse("channel:42:post")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key.Namespace != "channel" || key.Subject != "42" || key.Action != "post" {
		t.Fatalf("unexpected key: %+v", key)
	}
}

func TestParseMalformed(t *testing.T) {
	for _, raw := range []string{"", "admin", "a:b:c:d", "channel::read", ":read", "channel:7:"} {
		_, err := Parse(raw)
		var parseErr *ParseError
		if !errors.As(err, &parseErr) {
			t.Fatalf("expected parse error for %q, got %v", raw, err)
		}
		if parseErr.Raw != raw {
			t.Fatalf("expected offending string %q carried, got %q", raw, parseErr.Raw)
		}
	}
}

func TestBuildParseRoundTrip(t *testing.T) {
	cases := []struct {
		namespace, subject, action string
	}{
		{"global", "", "admin"},
		{"channel", "7", "read"},
		{"channel", "999", "admin"},
		{"reporting", "", "create"},
		{"broadcast", "", "send"},
		{"invite", "", "manage"},
	}
	for _, tc := range cases {
		raw := Build(tc.namespace, tc.subject, tc.action)
		key, err := Parse(raw)
		if err != nil {
			t.Fatalf("parse(%q): %v", raw, err)
		}
		want := RoleKey{Namespace: tc.namespace, Subject: tc.subject, Action: tc.action}
		if !key.Equal(want) {
			t.Fatalf("round trip mismatch: got %+v want %+v", key, want)
		}
		if key.String() != raw {
			t.Fatalf("string form mismatch: got %q want %q", key.String(), raw)
		}
	}
}

func TestChannelRoleValidatesAction(t *testing.T) {
	key, err := ChannelRole("12", ActionPost)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key.String() != "channel:12:post" {
		t.Fatalf("unexpected key %q", key.String())
	}

	_, err = ChannelRole("12", "moderate")
	var actionErr *ActionError
	if !errors.As(err, &actionErr) {
		t.Fatalf("expected action error, got %v", err)
	}
}

func TestReportingRoleRejectsForeignAction(t *testing.T) {
	if _, err := ReportingRole(ActionSend); err == nil {
		t.Fatal("expected error for broadcast action in reporting namespace")
	}
	if _, err := ReportingRole(ActionCreate); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
