package services

import (
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// MailSender 抽象底层投递，便于测试替换
type MailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer 出站事务邮件。批量发送时每个收件人独立投递，
// 单个失败不阻断其余收件人。
type Mailer struct {
	sender MailSender
	from   string
	logger *logrus.Logger
}

// NewMailer 创建邮件服务
func NewMailer(host string, port int, username, password, from string, logger *logrus.Logger) *Mailer {
	if logger == nil {
		logger = logrus.New()
	}
	return &Mailer{
		sender: gomail.NewDialer(host, port, username, password),
		from:   from,
		logger: logger,
	}
}

// NewMailerWithSender 注入自定义投递实现（测试用）
func NewMailerWithSender(sender MailSender, from string, logger *logrus.Logger) *Mailer {
	if logger == nil {
		logger = logrus.New()
	}
	return &Mailer{sender: sender, from: from, logger: logger}
}

// SendBulk 逐个收件人投递，返回成功数与逐项失败
func (m *Mailer) SendBulk(recipients []string, subject, html string) (int, []error) {
	sent := 0
	var failures []error

	for _, recipient := range recipients {
		msg := gomail.NewMessage()
		msg.SetHeader("From", m.from)
		msg.SetHeader("To", recipient)
		msg.SetHeader("Subject", subject)
		msg.SetBody("text/html", html)

		if err := m.sender.DialAndSend(msg); err != nil {
			m.logger.Errorf("Failed to send mail to %s: %v", recipient, err)
			failures = append(failures, err)
			continue
		}
		sent++
	}

	m.logger.Infof("Bulk mail done: %d sent, %d failed", sent, len(failures))
	return sent, failures
}
