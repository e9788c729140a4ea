package emailsvc

import (
	"bytes"
	"encoding/base64"
	"net/http"
	"net/mail"
	"testing"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/selah/core"
	logsvc "github.com/trezcool/selah/services/logger"
)

type senderStub struct {
	responses []*rest.Response
	errs      []error
	sent      []*sgmail.SGMailV3
}

func (s *senderStub) Send(m *sgmail.SGMailV3) (*rest.Response, error) {
	i := len(s.sent)
	s.sent = append(s.sent, m)
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if i < len(s.responses) && s.responses[i] != nil {
		return s.responses[i], err
	}
	return &rest.Response{StatusCode: http.StatusAccepted}, err
}

func newTestSendgrid(client mailSender) *sendgridService {
	svc := newSendgridService(core.NewTestConfig(), client, logsvc.NewTestLogger())
	svc.backoff = 0
	return svc
}

func TestSendgrid_prepare(t *testing.T) {
	svc := newTestSendgrid(new(senderStub))

	msg := core.EmailMessage{
		To:           []mail.Address{{Name: "Ruth", Address: "ruth@selah.test"}},
		Bcc:          []mail.Address{{Address: "audit@selah.test"}},
		Subject:      "Thank you for your donation",
		TemplateName: "donation_receipt",
		TextContent:  "We received your donation of 20.00 USD",
	}
	require.NoError(t, msg.Attach(bytes.NewBufferString("%PDF-1.4"), "receipt.pdf", "application/pdf"))

	m := svc.prepare(msg)
	require.Len(t, m.Personalizations, 1)
	assert.Equal(t, svc.subjPrefix+"Thank you for your donation", m.Personalizations[0].Subject)
	assert.Equal(t, "ruth@selah.test", m.Personalizations[0].To[0].Address)
	assert.Len(t, m.Personalizations[0].BCC, 1)

	require.Len(t, m.Content, 1, "no empty html part")
	assert.Equal(t, "text/plain", m.Content[0].Type)

	require.Len(t, m.Attachments, 1)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("%PDF-1.4")), m.Attachments[0].Content)
	assert.Equal(t, "receipt.pdf", m.Attachments[0].Filename)

	assert.Equal(t, []string{"donation_receipt"}, m.Categories)
}

func TestSendgrid_send(t *testing.T) {
	msg := core.EmailMessage{To: []mail.Address{{Address: "dan@selah.test"}}, Subject: "hi", TextContent: "hello"}

	t.Run("accepted", func(t *testing.T) {
		stub := new(senderStub)
		require.NoError(t, newTestSendgrid(stub).send(msg))
		assert.Len(t, stub.sent, 1)
	})

	t.Run("retries server errors", func(t *testing.T) {
		stub := &senderStub{
			responses: []*rest.Response{{StatusCode: http.StatusTooManyRequests}, {StatusCode: http.StatusBadGateway}},
		}
		require.NoError(t, newTestSendgrid(stub).send(msg))
		assert.Len(t, stub.sent, 3)
	})

	t.Run("client errors are final", func(t *testing.T) {
		stub := &senderStub{responses: []*rest.Response{{StatusCode: http.StatusBadRequest, Body: "bad from"}}}
		err := newTestSendgrid(stub).send(msg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad from")
		assert.Len(t, stub.sent, 1)
	})

	t.Run("gives up", func(t *testing.T) {
		boom := errors.New("connection reset")
		stub := &senderStub{errs: []error{boom, boom, boom}}
		err := newTestSendgrid(stub).send(msg)
		assert.ErrorIs(t, err, boom)
		assert.Len(t, stub.sent, sendgridAttempts)
	})
}
