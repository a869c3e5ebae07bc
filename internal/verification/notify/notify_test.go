package notify

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"firebase.google.com/go/messaging"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"gopkg.in/gomail.v2"
)

type stubSender struct {
	sent []*gomail.Message
	err  error
}

func (s *stubSender) DialAndSend(m ...*gomail.Message) error {
	s.sent = append(s.sent, m...)
	return s.err
}

func TestMailerRendersTemplate(t *testing.T) {
	tm, err := NewTemplateManager()
	if err != nil {
		t.Fatalf("NewTemplateManager: %v", err)
	}
	sender := &stubSender{}
	m := &Mailer{from: "billing@smartduka.test", sender: sender, templates: tm}

	err = m.SendTemplateEmail(context.Background(), "amina@duka.test", TemplatePaymentVerified, map[string]interface{}{
		"InvoiceID": "INV-1", "AdminName": "Amina", "Amount": "5000.00", "Currency": "KES",
		"ShopName": "Duka One", "ReceiptReference": "QX12ABC", "Activated": true, "PlanCode": "pro",
	})
	if err != nil {
		t.Fatalf("SendTemplateEmail: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(sender.sent))
	}
	msg := sender.sent[0]
	if got := msg.GetHeader("Subject"); len(got) != 1 || got[0] != "Payment received for invoice INV-1" {
		t.Fatalf("unexpected subject %v", got)
	}
	if got := msg.GetHeader("To"); len(got) != 1 || got[0] != "amina@duka.test" {
		t.Fatalf("unexpected recipient %v", got)
	}
}

func TestMailerErrors(t *testing.T) {
	tm, _ := NewTemplateManager()
	m := &Mailer{sender: &stubSender{err: errors.New("smtp down")}, templates: tm}
	if err := m.SendTemplateEmail(context.Background(), " ", TemplatePaymentVerified, nil); err == nil {
		t.Fatal("expected empty recipient error")
	}
	if err := m.SendTemplateEmail(context.Background(), "a@b.test", "missing", nil); err == nil {
		t.Fatal("expected missing template error")
	}
	if err := m.SendTemplateEmail(context.Background(), "a@b.test", TemplatePaymentRejected, map[string]interface{}{}); err == nil {
		t.Fatal("expected smtp error")
	}
}

func TestTemplateManagerLoadDir(t *testing.T) {
	dir := t.TempDir()
	body := `<p>Custom {{.Reason}}</p>`
	if err := os.WriteFile(filepath.Join(dir, TemplatePaymentRejected+".html"), []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	tm, _ := NewTemplateManager()
	if err := tm.LoadDir(dir); err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	subject, html, err := tm.Render(TemplatePaymentRejected, map[string]interface{}{"InvoiceID": "INV-2", "Reason": "<b>bad</b>"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(subject, "INV-2") {
		t.Fatalf("expected default subject, got %q", subject)
	}
	if html != "<p>Custom &lt;b&gt;bad&lt;/b&gt;</p>" {
		t.Fatalf("expected escaped custom body, got %q", html)
	}
}

type stubFCM struct {
	tokens []string
	fail   string
}

func (s *stubFCM) Send(_ context.Context, m *messaging.Message) (string, error) {
	if m.Token == s.fail {
		return "", errors.New("unregistered")
	}
	s.tokens = append(s.tokens, m.Token)
	return "msg-" + m.Token, nil
}

func TestPushSenderPartialFailure(t *testing.T) {
	fcm := &stubFCM{fail: "bad-token-123"}
	p := NewPushSender(fcm)
	err := p.Notify(context.Background(), []string{"tok-1", "", "bad-token-123", "tok-2"}, "Paid", "Invoice INV-1 verified",
		map[string]string{"invoice_id": "INV-1"})
	if err == nil || !strings.Contains(err.Error(), "bad-toke...") {
		t.Fatalf("expected joined error for bad token, got %v", err)
	}
	if len(fcm.tokens) != 2 {
		t.Fatalf("expected delivery to the two good tokens, got %v", fcm.tokens)
	}
}

type recordingPublisher struct {
	names []string
	err   error
}

func (r *recordingPublisher) Emit(_ context.Context, name string, _ interface{}) error {
	r.names = append(r.names, name)
	return r.err
}

func TestFanoutContinuesOnError(t *testing.T) {
	failing := &recordingPublisher{err: errors.New("down")}
	ok := &recordingPublisher{}
	err := Fanout{failing, nil, ok}.Emit(context.Background(), EventPaymentVerified, nil)
	if err == nil {
		t.Fatal("expected joined error")
	}
	if len(ok.names) != 1 || ok.names[0] != EventPaymentVerified {
		t.Fatalf("second publisher not reached: %v", ok.names)
	}
}

func TestRedisPublisher(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx := context.Background()
	sub := rdb.Subscribe(ctx, "smartduka:events")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	pub := NewRedisPublisher(rdb, "smartduka:events")
	if err := pub.Emit(ctx, EventPaymentVerified, map[string]string{"invoice_id": "INV-1"}); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		var ev struct {
			Name    string            `json:"event"`
			Payload map[string]string `json:"payload"`
		}
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if ev.Name != EventPaymentVerified || ev.Payload["invoice_id"] != "INV-1" {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event not received")
	}
}
