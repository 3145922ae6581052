package dep

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	brevo "github.com/getbrevo/brevo-go/lib"
)

const (
	brevoTransportName = "brevo"
	brevoScheduleLead  = 10 * time.Second
)

var (
	sendEmailUrl = "https://api.brevo.com/v3/smtp/email"
)

type brevoResp struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

type brevoTransport struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

func NewBrevoTransport(_ context.Context, apiKey string, timeout time.Duration) MailTransport {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &brevoTransport{
		apiKey:   apiKey,
		endpoint: sendEmailUrl,
		client:   &http.Client{Timeout: timeout},
	}
}

func (s *brevoTransport) Send(ctx context.Context, msg *MailMessage) (*SendReceipt, error) {
	if err := msg.validate(); err != nil {
		return nil, rejected(err)
	}

	body := brevo.SendSmtpEmail{
		Sender: &brevo.SendSmtpEmailSender{
			Name:  msg.From.Name,
			Email: msg.From.Email,
		},
		ReplyTo: &brevo.SendSmtpEmailReplyTo{
			Name:  msg.From.Name,
			Email: msg.From.Email,
		},
		To:          []brevo.SendSmtpEmailTo{{Email: msg.To.Email, Name: msg.To.Name}},
		Subject:     msg.Subject,
		HtmlContent: msg.HtmlContent,
		Tags:        []string{fmt.Sprintf("campaign-%d", msg.CampaignID)},
		ScheduledAt: time.Now().Add(brevoScheduleLead),
	}

	created := new(brevo.CreateSmtpEmail)
	if err := s.postHttpRequest(ctx, s.endpoint, body, created); err != nil {
		return nil, err
	}

	return &SendReceipt{
		Transport: brevoTransportName,
		MessageID: created.MessageId,
	}, nil
}

func (s *brevoTransport) postHttpRequest(ctx context.Context, url string, body, dst interface{}) error {
	js, err := json.Marshal(body)
	if err != nil {
		return rejected(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(js))
	if err != nil {
		return err
	}

	req.Header.Add("accept", "application/json")
	req.Header.Add("content-type", "application/json")
	req.Header.Add("api-key", s.apiKey)

	res, err := s.client.Do(req)
	if err != nil {
		return err
	}

	defer func() {
		_ = res.Body.Close()
	}()

	b, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}

	if res.StatusCode >= http.StatusBadRequest {
		brevoResp := new(brevoResp)
		_ = json.Unmarshal(b, brevoResp)

		err := fmt.Errorf("encounter brevo error: %s, code: %s, status: %d", brevoResp.Message, brevoResp.Code, res.StatusCode)
		if res.StatusCode < http.StatusInternalServerError && res.StatusCode != http.StatusTooManyRequests {
			return rejected(err)
		}
		return err
	}

	if len(b) == 0 {
		return nil
	}

	return json.Unmarshal(b, dst)
}
