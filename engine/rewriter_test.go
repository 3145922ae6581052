package engine

import (
	"context"
	"net/url"
	"phishsim/entity"
	"phishsim/pkg/goutil"
	"strings"
	"testing"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const testBaseURL = "https://track.example/"

func collectAttr(t *testing.T, page string, a atom.Atom, key string) []string {
	t.Helper()

	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		t.Fatalf("html.Parse() err = %v", err)
	}

	var vals []string
	walk(doc, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == a {
			for _, attr := range n.Attr {
				if attr.Key == key {
					vals = append(vals, attr.Val)
				}
			}
		}
		return true
	})
	return vals
}

func TestRewriteHref(t *testing.T) {
	withLanding := &entity.Campaign{ID: goutil.Uint64(7), LandingPageTemplateID: goutil.Uint64(3)}
	noLanding := &entity.Campaign{ID: goutil.Uint64(7)}

	tests := []struct {
		name     string
		href     string
		campaign *entity.Campaign
		want     string
	}{
		{"placeholder", "{{PHISHING_LINK}}", withLanding, "https://track.example/Track/Landing?c=7&t=9"},
		{"placeholder any case", " {{phishing_link}} ", withLanding, "https://track.example/Track/Landing?c=7&t=9"},
		{"placeholder without landing page", "{{PHISHING_LINK}}", noLanding, "{{PHISHING_LINK}}"},
		{"absolute https", "https://login.corp.example/reset?u=1",
			noLanding, "https://track.example/Track/Click?c=7&t=9&url=" + goutil.Base64URLEncode("https://login.corp.example/reset?u=1")},
		{"absolute http", "http://a.example", withLanding, "https://track.example/Track/Click?c=7&t=9&url=" + goutil.Base64URLEncode("http://a.example")},
		{"absolute with surrounding whitespace", "\n  https://a.example/x  ", noLanding,
			"https://track.example/Track/Click?c=7&t=9&url=" + goutil.Base64URLEncode("https://a.example/x")},
		{"relative", "/help", noLanding, "/help"},
		{"mailto", "mailto:it@corp.example", noLanding, "mailto:it@corp.example"},
		{"fragment", "#top", noLanding, "#top"},
		{"ftp", "ftp://files.example/a", noLanding, "ftp://files.example/a"},
		{"empty", "", noLanding, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rewriteHref(tt.href, tt.campaign, 9, testBaseURL); got != tt.want {
				t.Errorf("rewriteHref() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClickURLRoundTrip(t *testing.T) {
	for _, dest := range []string{
		"https://a.example/?q=a+b&x=%2F~",
		"https://例子.example/路径?ü=1",
		"http://h.example/" + strings.Repeat("?", 7),
	} {
		u, err := url.Parse(ClickURL(testBaseURL, 1, 2, dest))
		if err != nil {
			t.Fatalf("url.Parse() err = %v", err)
		}

		enc := u.Query().Get("url")
		if strings.Contains(enc, "=") {
			t.Errorf("encoded url %q is padded", enc)
		}

		got, err := goutil.Base64URLDecode(enc)
		if err != nil || got != dest {
			t.Errorf("round trip = %q, %v, want %q", got, err, dest)
		}
	}
}

func TestRewrite(t *testing.T) {
	rewriter := NewContentRewriter()
	campaign := &entity.Campaign{ID: goutil.Uint64(1), LandingPageTemplateID: goutil.Uint64(2)}

	body := `<html><body><p>Hi</p>` +
		`<a href="https://portal.example/login">Login</a>` +
		`<a href="{{PHISHING_LINK}}">Verify</a>` +
		`<a href="mailto:help@corp.example">Help</a>` +
		`</body></html>`

	out := rewriter.Rewrite(context.Background(), &RewriteRequest{
		Html:         body,
		Campaign:     campaign,
		TargetUserID: 5,
		BaseURL:      testBaseURL,
	})

	hrefs := collectAttr(t, out, atom.A, "href")
	want := []string{
		ClickURL(testBaseURL, 1, 5, "https://portal.example/login"),
		LandingURL(testBaseURL, 1, 5),
		"mailto:help@corp.example",
	}
	if strings.Join(hrefs, "\n") != strings.Join(want, "\n") {
		t.Errorf("hrefs = %v, want %v", hrefs, want)
	}

	srcs := collectAttr(t, out, atom.Img, "src")
	if len(srcs) != 1 || srcs[0] != "https://track.example/Track/Open?c=1&t=5" {
		t.Errorf("pixel srcs = %v", srcs)
	}
	if styles := collectAttr(t, out, atom.Img, "style"); len(styles) != 1 || styles[0] != pixelStyle {
		t.Errorf("pixel style = %v", styles)
	}

	campaign.TrackOpens = goutil.Bool(false)
	out = rewriter.Rewrite(context.Background(), &RewriteRequest{Html: body, Campaign: campaign, TargetUserID: 5, BaseURL: testBaseURL})
	if srcs := collectAttr(t, out, atom.Img, "src"); len(srcs) != 0 {
		t.Errorf("pixel added with open tracking off: %v", srcs)
	}
}

func TestRewriteFragmentGetsBody(t *testing.T) {
	out := NewContentRewriter().Rewrite(context.Background(), &RewriteRequest{
		Html:         `Click <a href="https://x.example">here</a>`,
		Campaign:     &entity.Campaign{ID: goutil.Uint64(1)},
		TargetUserID: 2,
		BaseURL:      testBaseURL,
	})

	if n := len(collectAttr(t, out, atom.Img, "src")); n != 1 {
		t.Errorf("pixels = %d, want 1", n)
	}
	if !strings.Contains(out, "<body>") {
		t.Errorf("output has no body: %s", out)
	}
}

func TestRewriteFallsBackToRawBody(t *testing.T) {
	body := `<html><frameset><frame src="https://portal.example/login"></frameset></html>`

	out := NewContentRewriter().Rewrite(context.Background(), &RewriteRequest{
		Html:         body,
		Campaign:     &entity.Campaign{ID: goutil.Uint64(1), TrackOpens: goutil.Bool(true)},
		TargetUserID: 2,
		BaseURL:      testBaseURL,
	})
	if out != body {
		t.Errorf("Rewrite() = %q, want the raw body", out)
	}

	// without the pixel there is nothing that needs a body
	out = NewContentRewriter().Rewrite(context.Background(), &RewriteRequest{
		Html:         body,
		Campaign:     &entity.Campaign{ID: goutil.Uint64(1), TrackOpens: goutil.Bool(false)},
		TargetUserID: 2,
		BaseURL:      testBaseURL,
	})
	if out == body || strings.Contains(out, "<img") {
		t.Errorf("Rewrite() without open tracking = %q", out)
	}
}

func TestRewrittenClickIsTrackable(t *testing.T) {
	href := rewriteHref(" https://a.example/x\t", &entity.Campaign{ID: goutil.Uint64(1)}, 2, testBaseURL)

	u, err := url.Parse(href)
	if err != nil {
		t.Fatalf("url.Parse() err = %v", err)
	}
	dest, err := goutil.Base64URLDecode(u.Query().Get("url"))
	if err != nil {
		t.Fatalf("decode err = %v", err)
	}
	if !IsAbsoluteHttpURL(dest) {
		t.Errorf("decoded destination %q is not an absolute url", dest)
	}
}

func TestResolveSender(t *testing.T) {
	settings := &entity.MailSettings{
		FromAddress:     goutil.String("noreply@corp.example"),
		FromDisplayName: goutil.String("Corp"),
	}

	tests := []struct {
		name    string
		tmpl    *entity.MailTemplate
		want    entity.Sender
		wantErr bool
	}{
		{"defaults", &entity.MailTemplate{}, entity.Sender{Email: "noreply@corp.example", Name: "Corp"}, false},
		{"custom address keeps default name", &entity.MailTemplate{CustomFromAddress: goutil.String("hr@corp.example")},
			entity.Sender{Email: "hr@corp.example", Name: "Corp"}, false},
		{"custom name only", &entity.MailTemplate{CustomFromDisplayName: goutil.String("IT Support")},
			entity.Sender{Email: "noreply@corp.example", Name: "IT Support"}, false},
		{"both", &entity.MailTemplate{CustomFromAddress: goutil.String("ceo@corp.example"), CustomFromDisplayName: goutil.String("CEO")},
			entity.Sender{Email: "ceo@corp.example", Name: "CEO"}, false},
		{"blank custom address ignored", &entity.MailTemplate{CustomFromAddress: goutil.String("  ")},
			entity.Sender{Email: "noreply@corp.example", Name: "Corp"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewContentRewriter().ResolveSender(tt.tmpl, settings)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ResolveSender() err = %v", err)
			}
			if *got != tt.want {
				t.Errorf("ResolveSender() = %+v, want %+v", *got, tt.want)
			}
		})
	}

	if _, err := NewContentRewriter().ResolveSender(&entity.MailTemplate{}, &entity.MailSettings{}); err != ErrEmptySenderAddress {
		t.Errorf("ResolveSender() with no address err = %v", err)
	}
}

func TestRewriteLandingForm(t *testing.T) {
	page := `<html><body><form action="https://evil.example" method="get">` +
		`<input name="username"><input type="password" name="password"></form>` +
		`<form id="second"></form></body></html>`

	out, err := RewriteLandingForm(page, 4, 8)
	if err != nil {
		t.Fatalf("RewriteLandingForm() err = %v", err)
	}

	if actions := collectAttr(t, out, atom.Form, "action"); len(actions) != 1 || actions[0] != "/Track/Submit" {
		t.Errorf("form actions = %v", actions)
	}
	if methods := collectAttr(t, out, atom.Form, "method"); len(methods) != 1 || methods[0] != "POST" {
		t.Errorf("form methods = %v", methods)
	}

	names := strings.Join(collectAttr(t, out, atom.Input, "name"), ",")
	if names != "username,password,CampaignId,TargetUserId" {
		t.Errorf("input names = %s", names)
	}
	values := collectAttr(t, out, atom.Input, "value")
	if len(values) != 2 || values[0] != "4" || values[1] != "8" {
		t.Errorf("hidden values = %v", values)
	}

	plain, err := RewriteLandingForm(`<p>No form here</p>`, 1, 1)
	if err != nil || !strings.Contains(plain, "<p>No form here</p>") {
		t.Errorf("RewriteLandingForm() without form = %q, %v", plain, err)
	}
}
