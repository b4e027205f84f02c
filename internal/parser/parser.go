package parser

import (
	"bytes"
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrReauthNeeded indicates the body is a sign-in page rather than data,
// which is how some proxies in front of the service answer an expired token.
var ErrReauthNeeded = errors.New("reauthentication required")

const maxSummary = 200

// LooksLikeHTML reports whether body starts like an HTML document.
func LooksLikeHTML(body []byte) bool {
	b := bytes.TrimSpace(body)
	if len(b) == 0 || b[0] != '<' {
		return false
	}
	head := strings.ToLower(string(b[:min(len(b), 512)]))
	return strings.Contains(head, "<html") || strings.Contains(head, "<!doctype") ||
		strings.Contains(head, "<head") || strings.Contains(head, "<body")
}

// InspectHTML returns ErrReauthNeeded for sign-in pages and otherwise a short
// human readable summary (title or first heading) of an HTML error page.
func InspectHTML(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", err
	}

	if isSignInPage(doc) {
		return "", ErrReauthNeeded
	}

	summary := strings.TrimSpace(doc.Find("title").First().Text())
	if summary == "" {
		summary = strings.TrimSpace(doc.Find("h1, h2").First().Text())
	}
	if summary == "" {
		summary = strings.TrimSpace(doc.Find("body").Text())
	}
	summary = strings.Join(strings.Fields(summary), " ")
	if len(summary) > maxSummary {
		summary = summary[:maxSummary] + "…"
	}
	return summary, nil
}

func isSignInPage(doc *goquery.Document) bool {
	if doc.Find(`input[type="password"]`).Length() > 0 {
		return true
	}
	found := false
	doc.Find("a[href], form[action]").EachWithBreak(func(i int, s *goquery.Selection) bool {
		target := s.AttrOr("href", s.AttrOr("action", ""))
		if strings.Contains(target, "/auth/login") || strings.Contains(target, "/login/oauth") ||
			strings.Contains(target, "/auth/google/login") {
			found = true
			return false
		}
		return true
	})
	return found
}
