package emailsvc

import (
	"fmt"
	"log"
	"mime/multipart"
	"net/mail"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/eventuais/eventuais/core"
)

// consoleService prints messages to the standard logger instead of delivering them.
// It is used in development and tests, where every rendered message is also kept in an outbox.
type consoleService struct {
	defaultFromEmail mail.Address
	subjPrefix       string
	disableOutput    bool
	sync             bool
	logger           core.Logger

	mu     sync.Mutex
	outbox []core.EmailMessage
}

var _ core.EmailService = (*consoleService)(nil)

func NewConsoleService(conf *core.Config, logger core.Logger) *consoleService {
	return &consoleService{
		defaultFromEmail: conf.DefaultFromEmail(),
		subjPrefix:       "[" + conf.AppName + "] ",
		logger:           logger,
	}
}

// NewConsoleServiceMock sends synchronously and silently; tests inspect Outbox.
func NewConsoleServiceMock(conf *core.Config, logger core.Logger) *consoleService {
	svc := NewConsoleService(conf, logger)
	svc.disableOutput = true
	svc.sync = true
	return svc
}

func (svc *consoleService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		if svc.sync {
			svc.sendMessage(msg)
		} else {
			go svc.sendMessage(msg)
		}
	}
}

// Outbox returns a copy of the messages sent so far.
func (svc *consoleService) Outbox() []core.EmailMessage {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return append([]core.EmailMessage(nil), svc.outbox...)
}

func (svc *consoleService) sendMessage(msg *core.EmailMessage) {
	if err := msg.Render(); err != nil {
		svc.logger.Error("rendering email", errors.Wrap(err, msg.TemplateName))
		return
	}
	if msg.HasRecipients() && (msg.HasContent() || msg.HasAttachments()) {
		svc.send(*msg)
		svc.mu.Lock()
		svc.outbox = append(svc.outbox, *msg)
		svc.mu.Unlock()
	}
}

func (svc *consoleService) send(msg core.EmailMessage) {
	body := new(strings.Builder)

	_, _ = fmt.Fprintf(body, "From: %s\r\n", svc.defaultFromEmail.String())
	_, _ = fmt.Fprint(body, "MIME-Version: 1.0\r\n")
	_, _ = fmt.Fprintf(body, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	_, _ = fmt.Fprintf(body, "Subject: %s\r\n", svc.subjPrefix+msg.Subject)
	_, _ = fmt.Fprintf(body, "To: %s\r\n", joinAddresses(msg.To))
	if len(msg.Cc) > 0 {
		_, _ = fmt.Fprintf(body, "CC: %s\r\n", joinAddresses(msg.Cc))
	}
	if len(msg.Bcc) > 0 {
		_, _ = fmt.Fprintf(body, "BCC: %s\r\n", joinAddresses(msg.Bcc))
	}

	altW := multipart.NewWriter(body)
	_, _ = fmt.Fprintf(body, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", altW.Boundary())

	if msg.TextContent != "" {
		if w, err := altW.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/plain"}}); err == nil {
			_, _ = fmt.Fprintf(w, "%s\r\n", msg.TextContent)
		}
	}
	if msg.HTMLContent != "" {
		if w, err := altW.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/html"}}); err == nil {
			_, _ = fmt.Fprintf(w, "%s\r\n", msg.HTMLContent)
		}
	}
	for _, at := range msg.Attachments {
		w, err := altW.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {at.ContentType},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {"attachment; filename=" + at.Filename},
		})
		if err != nil {
			svc.logger.Error("creating attachment part", errors.Wrap(err, at.Filename))
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\r\n", at.Content.String())
	}
	_ = altW.Close()

	if !svc.disableOutput {
		log.Println(body.String())
	}
}

func joinAddresses(addrs []mail.Address) string {
	toJoin := make([]string, 0, len(addrs))
	for _, a := range addrs {
		toJoin = append(toJoin, a.String())
	}
	return strings.Join(toJoin, ", ")
}
