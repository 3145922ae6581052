package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"phishsim/config"
	"phishsim/entity"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const pixelStyle = "display:none;border:0;width:1px;height:1px;"

var ErrEmptySenderAddress = errors.New("resolved sender address is empty")

type RewriteRequest struct {
	Html         string
	Campaign     *entity.Campaign
	TargetUserID uint64
	BaseURL      string
}

type ContentRewriter interface {
	// ResolveSender picks the template sender override over the system default, address and name independently.
	ResolveSender(tmpl *entity.MailTemplate, settings *entity.MailSettings) (*entity.Sender, error)
	// Rewrite personalizes html for one recipient. On any failure the raw html is returned.
	Rewrite(ctx context.Context, req *RewriteRequest) string
}

type contentRewriter struct{}

func NewContentRewriter() ContentRewriter {
	return new(contentRewriter)
}

func (r *contentRewriter) ResolveSender(tmpl *entity.MailTemplate, settings *entity.MailSettings) (*entity.Sender, error) {
	sender := &entity.Sender{
		Email: settings.GetFromAddress(),
		Name:  settings.GetFromDisplayName(),
	}

	if addr := strings.TrimSpace(tmpl.GetCustomFromAddress()); addr != "" {
		sender.Email = addr
	}
	if name := strings.TrimSpace(tmpl.GetCustomFromDisplayName()); name != "" {
		sender.Name = name
	}

	if sender.Email == "" {
		return nil, ErrEmptySenderAddress
	}

	return sender, nil
}

func (r *contentRewriter) Rewrite(ctx context.Context, req *RewriteRequest) string {
	out, err := rewriteBody(req)
	if err != nil {
		log.Ctx(ctx).Error().Msgf("rewrite mail body failed, sending raw body, campaign_id: %d, target_user_id: %d, err: %v",
			req.Campaign.GetID(), req.TargetUserID, err)
		return req.Html
	}
	return out
}

func rewriteBody(req *RewriteRequest) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("rewrite panicked: %v", r)
		}
	}()

	doc, err := html.Parse(strings.NewReader(req.Html))
	if err != nil {
		return "", err
	}

	campaignID := req.Campaign.GetID()

	walk(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.DataAtom != atom.A {
			return true
		}
		for i, attr := range n.Attr {
			if attr.Namespace != "" || attr.Key != "href" {
				continue
			}
			n.Attr[i].Val = rewriteHref(attr.Val, req.Campaign, req.TargetUserID, req.BaseURL)
		}
		return true
	})

	if req.Campaign.GetTrackOpens() {
		// frameset documents parse without a body
		body := findFirst(doc, atom.Body)
		if body == nil {
			return "", errors.New("document has no body")
		}
		body.AppendChild(&html.Node{
			Type:     html.ElementNode,
			Data:     atom.Img.String(),
			DataAtom: atom.Img,
			Attr: []html.Attribute{
				{Key: "src", Val: OpenURL(req.BaseURL, campaignID, req.TargetUserID)},
				{Key: "alt", Val: ""},
				{Key: "style", Val: pixelStyle},
			},
		})
	}

	return render(doc)
}

func rewriteHref(href string, campaign *entity.Campaign, targetUserID uint64, baseURL string) string {
	if IsPhishingLinkPlaceholder(href) && campaign.HasLandingPage() {
		return LandingURL(baseURL, campaign.GetID(), targetUserID)
	}

	// the trimmed form is encoded, TrackClick rejects a destination with leading spaces
	if dest := strings.TrimSpace(href); IsAbsoluteHttpURL(dest) {
		return ClickURL(baseURL, campaign.GetID(), targetUserID, dest)
	}

	return href
}

func IsAbsoluteHttpURL(s string) bool {
	if s == "" {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// RewriteLandingForm points the first form of a landing page at the submit endpoint and
// adds the hidden attribution fields. A page without a form is returned as rendered.
func RewriteLandingForm(page string, campaignID, targetUserID uint64) (string, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return "", err
	}

	if form := findFirst(doc, atom.Form); form != nil {
		setAttr(form, "action", config.PathTrackSubmit)
		setAttr(form, "method", "POST")
		form.AppendChild(hiddenInput("CampaignId", campaignID))
		form.AppendChild(hiddenInput("TargetUserId", targetUserID))
	}

	return render(doc)
}

func hiddenInput(name string, value uint64) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     atom.Input.String(),
		DataAtom: atom.Input,
		Attr: []html.Attribute{
			{Key: "type", Val: "hidden"},
			{Key: "name", Val: name},
			{Key: "value", Val: strconv.FormatUint(value, 10)},
		},
	}
}

func setAttr(n *html.Node, key, val string) {
	for i, attr := range n.Attr {
		if attr.Namespace == "" && strings.EqualFold(attr.Key, key) {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// walk visits nodes depth first until fn returns false.
func walk(n *html.Node, fn func(*html.Node) bool) bool {
	if !fn(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}

func findFirst(doc *html.Node, a atom.Atom) *html.Node {
	var found *html.Node
	walk(doc, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == a {
			found = n
			return false
		}
		return true
	})
	return found
}

func render(doc *html.Node) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return "", err
	}
	return buf.String(), nil
}
