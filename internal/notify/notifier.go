package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/imrishuroy/go-orderflow-saga/internal/aws"
)

type Message struct {
	OrderID string `json:"order_id"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Notifier delivers a customer notification and returns a message id.
type Notifier interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// LogNotifier writes the notification to the log instead of delivering it.
type LogNotifier struct {
	logger  *slog.Logger
	nowFunc func() time.Time
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger, nowFunc: time.Now}
}

func (n *LogNotifier) Send(ctx context.Context, msg Message) (string, error) {
	if msg.To == "" {
		return "", fmt.Errorf("notification for %s has no recipient", msg.OrderID)
	}
	id := fmt.Sprintf("MSG-%d-%s", n.nowFunc().Unix(), suffix(msg.OrderID, 6))
	n.logger.InfoContext(ctx, "notification sent",
		"message_id", id,
		"order_id", msg.OrderID,
		"to", msg.To,
		"subject", msg.Subject,
	)
	return id, nil
}

// QueueNotifier hands notifications to a delivery queue (email/SMS senders consume it).
type QueueNotifier struct {
	publisher *aws.Publisher
}

func NewQueueNotifier(publisher *aws.Publisher) *QueueNotifier {
	return &QueueNotifier{publisher: publisher}
}

func (n *QueueNotifier) Send(ctx context.Context, msg Message) (string, error) {
	if msg.To == "" {
		return "", fmt.Errorf("notification for %s has no recipient", msg.OrderID)
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal notification: %w", err)
	}
	id, err := n.publisher.Send(ctx, string(body), map[string]string{
		"order_id": msg.OrderID,
		"kind":     "order_confirmation",
	})
	if err != nil {
		return "", fmt.Errorf("enqueue notification: %w", err)
	}
	return id, nil
}

// OrderConfirmation renders the message sent once an order is fulfilled. note is the order's latest
// note, which carries the tracking id after fulfilment.
func OrderConfirmation(orderID, email, name, note string, total float64) Message {
	var b strings.Builder
	b.WriteString("Hello " + name + ",\n\n")
	b.WriteString("Great news! Your order " + orderID + " has been fulfilled and is on its way.\n")
	b.WriteString("Order total: $" + strconv.FormatFloat(total, 'f', 2, 64) + "\n")
	if note != "" {
		b.WriteString(note + "\n")
	}
	b.WriteString("\nThank you for your business!")
	return Message{
		OrderID: orderID,
		To:      email,
		Subject: "Your order " + orderID + " has been fulfilled",
		Body:    b.String(),
	}
}

func suffix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
