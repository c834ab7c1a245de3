package spec

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Ref
	}{
		{
			name: "uri with key shorthand",
			raw:  "<< /vault/mysecret:password >>",
			want: Ref{
				MainType:      RefTypeURI,
				Main:          Expression{Value: "/vault/mysecret"},
				SecondaryType: RefTypeKey,
				Secondary:     Expression{Value: "password"},
			},
		},
		{
			name: "bare alias",
			raw:  "<< myAlias >>",
			want: Ref{MainType: RefTypeName, Main: Expression{Value: "myAlias"}},
		},
		{
			name: "explicit name",
			raw:  "<<name redis-password>>",
			want: Ref{MainType: RefTypeName, Main: Expression{Value: "redis-password"}},
		},
		{
			name: "explicit uri and key",
			raw:  "<< uri /vault/db key password >>",
			want: Ref{
				MainType:      RefTypeURI,
				Main:          Expression{Value: "/vault/db"},
				SecondaryType: RefTypeKey,
				Secondary:     Expression{Value: "password"},
			},
		},
		{
			name: "uri without key",
			raw:  "<< /vault/db >>",
			want: Ref{MainType: RefTypeURI, Main: Expression{Value: "/vault/db"}},
		},
		{
			name: "scheme uri keeps scheme separator",
			raw:  "<< secret://vault/db:password >>",
			want: Ref{
				MainType:      RefTypeURI,
				Main:          Expression{Value: "secret://vault/db"},
				SecondaryType: RefTypeKey,
				Secondary:     Expression{Value: "password"},
			},
		},
		{
			name: "uri with alias",
			raw:  "<< uri /vault/db name db-creds >>",
			want: Ref{
				MainType:      RefTypeURI,
				Main:          Expression{Value: "/vault/db"},
				SecondaryType: RefTypeName,
				Secondary:     Expression{Value: "db-creds"},
			},
		},
		{
			name: "expression uri with spaces",
			raw:  "<< uri {#request.headers['x tenant'][0]} key password >>",
			want: Ref{
				MainType:      RefTypeURI,
				Main:          Expression{Value: "{#request.headers['x tenant'][0]}", EL: true},
				SecondaryType: RefTypeKey,
				Secondary:     Expression{Value: "password"},
			},
		},
		{
			name: "expression key",
			raw:  "<< /vault/db:{#vars.key} >>",
			want: Ref{
				MainType:      RefTypeURI,
				Main:          Expression{Value: "/vault/db"},
				SecondaryType: RefTypeKey,
				Secondary:     Expression{Value: "{#vars.key}", EL: true},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.raw)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.raw, err)
			}
			tt.want.Raw = tt.raw
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse(%q) mismatch (-want +got):\n%s", tt.raw, diff)
			}
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	tests := []string{
		"/vault/db:password",
		"<< >>",
		"<< name alias key password >>",
		"<< key password >>",
		"<< uri /a uri /b >>",
		"<< /vault/db extra >>",
		"<< uri {#unterminated >>",
	}
	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			_, err := Parse(raw)
			if !errors.Is(err, ErrMalformedRef) {
				t.Fatalf("Parse(%q) error = %v, want ErrMalformedRef", raw, err)
			}
		})
	}
}

func TestNewRef_KeyWithoutURIPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for key on a name reference")
		}
	}()
	NewRef(RefTypeName, NewExpression("alias"), RefTypeKey, NewExpression("k"), "")
}

func TestRef_URIAndKey(t *testing.T) {
	if got := MustParse("<< /mock/mySecret:redisPassword >>").URIAndKey(); got != "/mock/mySecret:redisPassword" {
		t.Errorf("URIAndKey() = %q", got)
	}
	if got := MustParse("<< /mock/mySecret >>").URIAndKey(); got != "/mock/mySecret" {
		t.Errorf("URIAndKey() = %q", got)
	}
	if got := MustParse("<< alias >>").URIAndKey(); got != "" {
		t.Errorf("URIAndKey() on name ref = %q, want empty", got)
	}
}

func TestRef_IsLiteral(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"<< /vault/db:password >>", true},
		{"<< alias >>", true},
		{"<< {#vars.path} >>", false},
		{"<< /vault/db:{#vars.key} >>", false},
	}
	for _, tt := range tests {
		if got := MustParse(tt.raw).IsLiteral(); got != tt.want {
			t.Errorf("IsLiteral(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestRef_StringRoundTrip(t *testing.T) {
	ref := MustParse("<< /vault/db:password >>")
	again, err := Parse(ref.String())
	if err != nil {
		t.Fatalf("Parse(String()) error = %v", err)
	}
	if again.URIAndKey() != ref.URIAndKey() || again.MainType != ref.MainType {
		t.Errorf("round trip mismatch: %q vs %q", again.String(), ref.String())
	}
}

func TestRef_ToRuntimeSpec(t *testing.T) {
	s := MustParse("<</mock/mySecret:redisPassword>>").ToRuntimeSpec("env-a")
	if s.URI != "/mock/mySecret" || s.Key != "redisPassword" {
		t.Errorf("runtime spec uri/key = %q/%q", s.URI, s.Key)
	}
	if !s.OnTheFly || s.EnvID != "env-a" || s.ID == "" {
		t.Errorf("unexpected runtime spec: %+v", s)
	}
	if s.Resolution.Type != ResolutionOnce {
		t.Errorf("resolution = %s, want ONCE", s.Resolution.Type)
	}

	dyn := MustParse("<< /vault/db:{#vars.key} >>").ToRuntimeSpec("env-a")
	if !dyn.UsesDynamicKey || dyn.Key != "" {
		t.Errorf("expected dynamic key spec, got %+v", dyn)
	}
}

func TestFindRefs(t *testing.T) {
	payload := `{"password":"<< /vault/db:password >>","user":"<< name {#vars.map['a>>b']} >>","plain":"x"}`
	matches := FindRefs(payload)
	if len(matches) != 2 {
		t.Fatalf("FindRefs() found %d refs, want 2: %#v", len(matches), matches)
	}
	for _, m := range matches {
		if payload[m.Start:m.End] != m.Raw {
			t.Errorf("offsets do not match raw: %q vs %q", payload[m.Start:m.End], m.Raw)
		}
	}
	if matches[0].Raw != "<< /vault/db:password >>" {
		t.Errorf("first ref = %q", matches[0].Raw)
	}
	if matches[1].Raw != "<< name {#vars.map['a>>b']} >>" {
		t.Errorf("second ref = %q", matches[1].Raw)
	}

	if got := FindRefs("no refs << here"); len(got) != 0 {
		t.Errorf("unterminated ref should not match, got %#v", got)
	}
}

func TestSegmentEnd(t *testing.T) {
	tests := []struct {
		body string
		want int
	}{
		{"env}", 3},
		{"{'a': 1}.a} tail", 10},
		{`"}" + env}`, 9},
		{"'}' + env}", 9},
		{"`}` + env}", 9},
		{"`\\` + env}", 9},
		{`"\"}" + env}`, 11},
		{"env", -1},
		{"`}", -1},
	}
	for _, tt := range tests {
		if got := SegmentEnd(tt.body); got != tt.want {
			t.Errorf("SegmentEnd(%q) = %d, want %d", tt.body, got, tt.want)
		}
	}
}

// A backtick-quoted brace must not end a segment in any scanner, so
// discovery and rendering agree on segment bounds.
func TestScanners_BacktickQuotedBrace(t *testing.T) {
	raw := "<< uri /vault/{#`}` + env}/db key password >>"
	matches := FindRefs("x=" + raw + ";")
	if len(matches) != 1 || matches[0].Raw != raw {
		t.Fatalf("FindRefs() = %#v", matches)
	}
	ref, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if ref.Main.Value != "/vault/{#`}` + env}/db" || ref.Secondary.Value != "password" {
		t.Errorf("Parse() = %+v", ref)
	}

	short, err := Parse("<< /vault/{#`:}`}:password >>")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if short.Main.Value != "/vault/{#`:}`}" || short.Secondary.Value != "password" {
		t.Errorf("key split inside the segment: %+v", short)
	}
}
