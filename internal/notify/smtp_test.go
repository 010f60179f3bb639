package notify

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/diewo77/go-stock/internal/config"
	"github.com/diewo77/go-stock/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRelay accepts one SMTP session and returns the DATA payload.
func fakeRelay(t *testing.T) (config.MailConfig, <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	data := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		reply := func(s string) { conn.Write([]byte(s + "\r\n")) }
		reply("220 relay.test ESMTP")
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			cmd := strings.ToUpper(strings.TrimSpace(line))
			switch {
			case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
				reply("250 relay.test")
			case strings.HasPrefix(cmd, "MAIL"), strings.HasPrefix(cmd, "RCPT"):
				reply("250 OK")
			case cmd == "DATA":
				reply("354 go ahead")
				var msg strings.Builder
				for {
					l, err := r.ReadString('\n')
					if err != nil {
						return
					}
					if l == ".\r\n" {
						break
					}
					msg.WriteString(l)
				}
				data <- msg.String()
				reply("250 queued")
			case cmd == "QUIT":
				reply("221 bye")
				return
			default:
				reply("502 not implemented")
			}
		}
	}()

	_, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return config.MailConfig{Host: "127.0.0.1", Port: p, From: "stock@localhost"}, data
}

func headerLines(msg string) []string {
	head, _, _ := strings.Cut(msg, "\r\n\r\n")
	return strings.Split(head, "\r\n")
}

func TestSMTPMailerKeepsProductNameInSubject(t *testing.T) {
	cfg, data := fakeRelay(t)
	p := models.Product{ID: 7, Name: "Mug\r\nBcc: attacker@evil.example", SKU: "MUG", Price: decimal.NewFromInt(5)}
	ev := NewLowStockEvent(p, 1, 25)

	err := NewSMTPMailer(cfg).Send(context.Background(), "ada@example.com", ev.Subject(), ev.Body("Ada", ""))
	require.NoError(t, err)

	var msg string
	select {
	case msg = <-data:
	case <-time.After(2 * time.Second):
		t.Fatal("relay received no message")
	}
	var subjects int
	for _, line := range headerLines(msg) {
		assert.False(t, strings.HasPrefix(strings.ToLower(line), "bcc:"), "unexpected header %q", line)
		if strings.HasPrefix(line, "Subject: ") {
			subjects++
			assert.Contains(t, line, "attacker@evil.example")
		}
	}
	assert.Equal(t, 1, subjects)
	assert.Contains(t, msg, "To: <ada@example.com>\r\n")
}

func TestSMTPMailerRejectsInjectedRecipient(t *testing.T) {
	cfg := config.MailConfig{Host: "127.0.0.1", Port: 1, From: "stock@localhost"}
	err := NewSMTPMailer(cfg).Send(context.Background(), "ada@example.com\r\nBcc: x@evil.example", "s", "b")
	assert.ErrorIs(t, err, ErrBadAddress)
}

func TestSMTPMailerGivesUpOnSilentRelay(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		// Never send a greeting.
		buf := make([]byte, 1)
		conn.Read(buf)
	}()
	_, port, _ := net.SplitHostPort(ln.Addr().String())
	p, _ := strconv.Atoi(port)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	err = NewSMTPMailer(config.MailConfig{Host: "127.0.0.1", Port: p, From: "stock@localhost"}).Send(ctx, "ada@example.com", "s", "b")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}
