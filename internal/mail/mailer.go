package mail

import (
	"bytes"
	"context"
	"html/template"

	"go.uber.org/zap"
)

// Message is one outbound email.
type Message struct {
	ToName  string
	ToEmail string
	Subject string
	HTML    string
}

// Sender delivers a single message synchronously.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Mailer is the fire-and-forget contract consumed by the engines: failures
// are logged by the queue, never propagated to the caller.
type Mailer interface {
	SendResetCode(name, email, code string)
	SendWelcome(name, email string)
}

var resetTemplate = template.Must(template.New("reset").Parse(`
<p>Hi {{.Name}},</p>
<p>Your password recovery code is:</p>
<p><strong>{{.Code}}</strong></p>
<p>The code expires shortly. If you did not request it, you can ignore this message.</p>
`))

var welcomeTemplate = template.Must(template.New("welcome").Parse(`
<p>Hi {{.Name}},</p>
<p>Welcome aboard! Your account is ready.</p>
`))

// TemplateMailer renders the templates and hands messages to a Sender
// through the retry queue.
type TemplateMailer struct {
	queue  *Queue
	logger *zap.Logger
}

// NewTemplateMailer creates a mailer over the given queue.
func NewTemplateMailer(queue *Queue, logger *zap.Logger) *TemplateMailer {
	return &TemplateMailer{queue: queue, logger: logger}
}

// SendResetCode enqueues the recovery-code email carrying the raw code.
func (m *TemplateMailer) SendResetCode(name, email, code string) {
	var body bytes.Buffer
	if err := resetTemplate.Execute(&body, struct{ Name, Code string }{name, code}); err != nil {
		m.logger.Error("render reset email", zap.Error(err))
		return
	}
	m.queue.Enqueue(Message{
		ToName:  name,
		ToEmail: email,
		Subject: "Password recovery code",
		HTML:    body.String(),
	})
}

// SendWelcome enqueues the registration email.
func (m *TemplateMailer) SendWelcome(name, email string) {
	var body bytes.Buffer
	if err := welcomeTemplate.Execute(&body, struct{ Name string }{name}); err != nil {
		m.logger.Error("render welcome email", zap.Error(err))
		return
	}
	m.queue.Enqueue(Message{
		ToName:  name,
		ToEmail: email,
		Subject: "Welcome!",
		HTML:    body.String(),
	})
}
