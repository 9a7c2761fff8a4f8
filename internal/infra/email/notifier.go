package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

type SMTPNotifier struct {
	host   string
	port   int
	from   string
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	logger *zap.Logger
}

func NewSMTPNotifier(host string, port int, from string, logger *zap.Logger) *SMTPNotifier {
	return &SMTPNotifier{host: host, port: port, from: from, send: smtp.SendMail, logger: logger}
}

func (n *SMTPNotifier) NotifyFailure(_ context.Context, to, jobID, sourcePrefix, errorMsg string) error {
	addr := fmt.Sprintf("%s:%d", n.host, n.port)
	msg := buildFailureMessage(n.from, to, jobID, sourcePrefix, errorMsg)

	if err := n.send(addr, nil, n.from, []string{to}, msg); err != nil {
		n.logger.Error("failed to send failure notification email",
			zap.String("to", to),
			zap.String("job_id", jobID),
			zap.Error(err),
		)
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info("failure notification email sent",
		zap.String("to", to),
		zap.String("job_id", jobID),
	)
	return nil
}

func buildFailureMessage(from, to, jobID, sourcePrefix, errorMsg string) []byte {
	subject := fmt.Sprintf("frameconv - Frame conversion failed [Job %s]", jobID)
	body := fmt.Sprintf(
		"Hello,\r\n\r\n"+
			"Your frame conversion job has failed and will not be retried.\r\n\r\n"+
			"Job ID: %s\r\n"+
			"Frames: %s\r\n"+
			"Error: %s\r\n\r\n"+
			"Check the frames under that prefix and submit the job again.\r\n\r\n"+
			"-- frameconv worker",
		jobID, sourcePrefix, oneLine(errorMsg),
	)

	return []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		from, to, subject, body,
	))
}

// oneLine keeps multi-line ffmpeg output from breaking the message layout.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
