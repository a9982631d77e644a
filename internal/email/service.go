package email

import (
	"fmt"
	"net/smtp"

	"github.com/example/pickup-orders/internal/order"
)

// Service sends customer notifications via SMTP. It is best-effort by
// contract: every caller treats a send failure as log-and-continue.
type Service struct {
	host string
	port string
	from string
}

func NewService(host, port, from string) *Service {
	return &Service{
		host: host,
		port: port,
		from: from,
	}
}

// SendOrderConfirmation mails the frozen receipt for a freshly placed
// pickup order.
func (s *Service) SendOrderConfirmation(to string, o *order.Order) error {
	subject := fmt.Sprintf("Order confirmed: pickup %s (ref %s)",
		o.PickupAt.Format("Mon Jan 2 15:04"), shortID(o.ID))
	body := BuildConfirmationBody(o)
	return s.send(to, subject, body)
}

// SendOrderRejection tells the customer their order was declined and
// every reserved item was released.
func (s *Service) SendOrderRejection(to string, o *order.Order, reason string) error {
	subject := fmt.Sprintf("Order %s could not be accepted", shortID(o.ID))
	body := BuildRejectionBody(o, reason)
	return s.send(to, subject, body)
}

func (s *Service) send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.from, to, subject, body)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	return smtp.SendMail(addr, nil, s.from, []string{to}, []byte(msg))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
