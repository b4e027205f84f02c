package parser

import (
	"errors"
	"strings"
	"testing"
)

func TestLooksLikeHTML(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"json array", `[{"id":1}]`, false},
		{"json null", `null`, false},
		{"empty", ``, false},
		{"doctype", "\n  <!DOCTYPE html><html><body>x</body></html>", true},
		{"bare html", `<html><head><title>502</title></head></html>`, true},
		{"xml-ish", `<note>hi</note>`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LooksLikeHTML([]byte(tt.body)); got != tt.want {
				t.Errorf("LooksLikeHTML(%q) = %v, want %v", tt.body, got, tt.want)
			}
		})
	}
}

func TestInspectHTML(t *testing.T) {
	tests := []struct {
		name      string
		html      string
		wantErr   error
		checkFunc func(t *testing.T, summary string)
	}{
		{
			name: "gateway error page uses title",
			html: `<html><head><title>502 Bad Gateway</title></head>
				<body><center><h1>502 Bad Gateway</h1></center><hr><center>nginx</center></body></html>`,
			checkFunc: func(t *testing.T, summary string) {
				if summary != "502 Bad Gateway" {
					t.Errorf("expected title summary, got %q", summary)
				}
			},
		},
		{
			name: "falls back to heading",
			html: `<html><body><h2>Service   temporarily
				unavailable</h2><p>retry later</p></body></html>`,
			checkFunc: func(t *testing.T, summary string) {
				if summary != "Service temporarily unavailable" {
					t.Errorf("expected heading summary, got %q", summary)
				}
			},
		},
		{
			name:    "password form is a sign-in page",
			html:    `<html><body><form><input type="email"><input type="password"></form></body></html>`,
			wantErr: ErrReauthNeeded,
		},
		{
			name:    "oauth link is a sign-in page",
			html:    `<html><body><a href="https://api.example.com/auth/google/login">Sign in</a></body></html>`,
			wantErr: ErrReauthNeeded,
		},
		{
			name: "long body is truncated",
			html: "<html><body>" + strings.Repeat("word ", 100) + "</body></html>",
			checkFunc: func(t *testing.T, summary string) {
				if len(summary) > maxSummary+len("…") {
					t.Errorf("summary too long: %d", len(summary))
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary, err := InspectHTML([]byte(tt.html))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("InspectHTML() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.checkFunc != nil {
				tt.checkFunc(t, summary)
			}
		})
	}
}
