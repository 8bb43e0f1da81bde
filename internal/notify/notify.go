// Package notify contém o envio de notificações por email da loja.
// LogNotifier regista as mensagens no log estruturado no lugar do envio real.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/domrealce/storefront/internal/contacts"
	"github.com/domrealce/storefront/internal/orders"
	"go.uber.org/zap"
)

// Message é um email pronto a enviar
type Message struct {
	To      string
	Subject string
	Body    string
}

// LogNotifier implementa orders.Notifier e contacts.Notifier escrevendo as mensagens no log
type LogNotifier struct {
	logger *zap.Logger
	// AdminEmail recebe as mensagens do formulário de contacto
	AdminEmail string
}

// NewLogNotifier cria uma nova instância de LogNotifier
func NewLogNotifier(logger *zap.Logger, adminEmail string) *LogNotifier {
	return &LogNotifier{logger: logger, AdminEmail: adminEmail}
}

func (n *LogNotifier) OrderCreated(ctx context.Context, order *orders.Order) error {
	return n.send(ctx, OrderCreatedMessage(order))
}

func (n *LogNotifier) OrderPaid(ctx context.Context, order *orders.Order) error {
	return n.send(ctx, OrderPaidMessage(order))
}

func (n *LogNotifier) OrderShipped(ctx context.Context, order *orders.Order) error {
	return n.send(ctx, OrderShippedMessage(order))
}

func (n *LogNotifier) ContactReceived(ctx context.Context, c *contacts.Contact) error {
	return n.send(ctx, ContactMessage(n.AdminEmail, c))
}

func (n *LogNotifier) send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("notification %q has no recipient", msg.Subject)
	}
	n.logger.Info("📧 Email",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body))
	return nil
}

// OrderCreatedMessage confirma a receção da encomenda
func OrderCreatedMessage(o *orders.Order) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Olá %s,\n\nRecebemos a sua encomenda %s.\n\n", o.Nome, o.NumeroEncomenda)
	for _, item := range o.Itens {
		fmt.Fprintf(&b, "- %s x%d: %s EUR\n", item.DisplayName(), item.Quantity, item.LineTotal().StringFixed(2))
	}
	fmt.Fprintf(&b, "\nSubtotal: %s EUR\nPortes: %s EUR\nIVA: %s EUR\nTotal: %s EUR\n",
		o.Subtotal.StringFixed(2), o.Envio.StringFixed(2), o.IVA.StringFixed(2), o.Total.StringFixed(2))
	return Message{
		To:      o.Email,
		Subject: "Encomenda " + o.NumeroEncomenda + " recebida",
		Body:    b.String(),
	}
}

// OrderPaidMessage confirma o pagamento
func OrderPaidMessage(o *orders.Order) Message {
	return Message{
		To:      o.Email,
		Subject: "Pagamento confirmado - " + o.NumeroEncomenda,
		Body: fmt.Sprintf("Olá %s,\n\nConfirmámos o pagamento de %s EUR da encomenda %s. Vamos começar a prepará-la.\n",
			o.Nome, o.Total.StringFixed(2), o.NumeroEncomenda),
	}
}

// OrderShippedMessage avisa o envio, com o código de rastreio quando existe
func OrderShippedMessage(o *orders.Order) Message {
	body := fmt.Sprintf("Olá %s,\n\nA encomenda %s foi enviada.\n", o.Nome, o.NumeroEncomenda)
	if o.CodigoRastreio != "" {
		body += "Código de rastreio: " + o.CodigoRastreio + "\n"
	}
	return Message{To: o.Email, Subject: "Encomenda " + o.NumeroEncomenda + " enviada", Body: body}
}

// ContactMessage reencaminha a mensagem do formulário para a equipa
func ContactMessage(to string, c *contacts.Contact) Message {
	subject := "Novo contacto de " + c.Nome
	if c.Assunto != "" {
		subject += ": " + c.Assunto
	}
	return Message{
		To:      to,
		Subject: subject,
		Body:    fmt.Sprintf("De: %s <%s> %s\n\n%s\n", c.Nome, c.Email, c.Telefone, c.Mensagem),
	}
}
