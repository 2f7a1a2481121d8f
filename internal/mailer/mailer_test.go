package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
)

type fakeTransport struct {
	errs  []error
	calls int
	sent  []*mail.Msg
}

func (f *fakeTransport) Deliver(_ context.Context, msg *mail.Msg) error {
	f.calls++
	f.sent = append(f.sent, msg)
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

type recordingSleeper struct {
	delays []time.Duration
}

func (r *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func testConfig() Config {
	return Config{
		Address:     "agent@example.com",
		AppPassword: "app-password",
		Server:      "smtp.example.com",
		Port:        587,
		MaxAttempts: 2,
		Timeout:     time.Second,
		BackoffBase: 2 * time.Second,
	}
}

func newTestMailer(cfg Config, transport *fakeTransport, sleeper *recordingSleeper) *Mailer {
	return New(cfg, WithTransport(transport), WithSleeper(sleeper.sleep))
}

func TestSendSuccess(t *testing.T) {
	transport := &fakeTransport{}
	m := newTestMailer(testConfig(), transport, &recordingSleeper{})

	out := m.Send(context.Background(), "bob@example.com", "Lunch", "See you at noon")

	assert.True(t, out.Success)
	assert.Equal(t, KindNone, out.Kind)
	assert.Equal(t, "Email sent successfully to bob@example.com", out.Message)
	assert.Equal(t, map[string]any{"to": "bob@example.com", "subject": "Lunch", "from": "agent@example.com"}, out.Details)
	require.Len(t, transport.sent, 1)

	var buf bytes.Buffer
	_, err := transport.sent[0].WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()
	assert.Contains(t, raw, "bob@example.com")
	assert.Contains(t, raw, "Subject: Lunch")
	assert.Contains(t, raw, "text/plain")
	assert.Contains(t, raw, "text/html")
}

func TestSendNotConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.AppPassword = ""
	transport := &fakeTransport{}
	m := newTestMailer(cfg, transport, &recordingSleeper{})

	out := m.Send(context.Background(), "bob@example.com", "Hi", "Hello")

	assert.False(t, out.Success)
	assert.Equal(t, KindNotConfigured, out.Kind)
	assert.Contains(t, out.Error, "not configured")
	assert.Zero(t, transport.calls)
	assert.False(t, m.Configured())
}

func TestSendInvalidAddress(t *testing.T) {
	transport := &fakeTransport{}
	m := newTestMailer(testConfig(), transport, &recordingSleeper{})

	out := m.Send(context.Background(), "not-an-address", "Hi", "Hello")

	assert.False(t, out.Success)
	assert.Equal(t, KindInvalidRecipient, out.Kind)
	assert.Equal(t, "Invalid email address: not-an-address", out.Error)
	assert.Zero(t, transport.calls)
}

func TestSendRetriesConnectionFailures(t *testing.T) {
	dialErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}

	t.Run("recovers on second attempt", func(t *testing.T) {
		transport := &fakeTransport{errs: []error{dialErr}}
		sleeper := &recordingSleeper{}
		m := newTestMailer(testConfig(), transport, sleeper)

		out := m.Send(context.Background(), "bob@example.com", "Hi", "Hello")

		assert.True(t, out.Success)
		assert.Equal(t, 2, transport.calls)
		assert.Equal(t, []time.Duration{2 * time.Second}, sleeper.delays)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		transport := &fakeTransport{errs: []error{dialErr, dialErr, dialErr}}
		sleeper := &recordingSleeper{}
		m := newTestMailer(testConfig(), transport, sleeper)

		out := m.Send(context.Background(), "bob@example.com", "Hi", "Hello")

		assert.False(t, out.Success)
		assert.Equal(t, KindConnectionFailure, out.Kind)
		assert.Equal(t, "Failed to connect to email server after 2 attempts", out.Error)
		assert.NotContains(t, out.Error, "refused")
		assert.Equal(t, 2, transport.calls)
		assert.Len(t, sleeper.delays, 1)
	})
}

func TestSendDoesNotRetryOtherFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind FailureKind
		msg  string
	}{
		{
			name: "auth",
			err:  &textproto.Error{Code: 535, Msg: "5.7.8 Username and Password not accepted"},
			kind: KindAuthFailure,
			msg:  authFailureMessage,
		},
		{
			name: "recipient",
			err:  &textproto.Error{Code: 550, Msg: "5.1.1 mailbox unavailable"},
			kind: KindInvalidRecipient,
			msg:  "The mail server rejected the recipient address bob@example.com",
		},
		{
			name: "protocol",
			err:  &textproto.Error{Code: 554, Msg: "5.7.1 message rejected"},
			kind: KindProtocolError,
			msg:  protocolErrorMessage,
		},
		{
			name: "unknown",
			err:  errors.New("something odd"),
			kind: KindUnknown,
			msg:  "Failed to send email: something odd",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := &fakeTransport{errs: []error{tt.err}}
			sleeper := &recordingSleeper{}
			m := newTestMailer(testConfig(), transport, sleeper)

			out := m.Send(context.Background(), "bob@example.com", "Hi", "Hello")

			assert.False(t, out.Success)
			assert.Equal(t, tt.kind, out.Kind)
			assert.Equal(t, tt.msg, out.Error)
			assert.Equal(t, 1, transport.calls)
			assert.Empty(t, sleeper.delays)
		})
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, KindNone, Classify(nil))
	assert.Equal(t, KindAuthFailure, Classify(fmt.Errorf("smtp auth: %w", errors.New("535 authentication failed"))))
	assert.Equal(t, KindConnectionFailure, Classify(fmt.Errorf("deliver: %w", context.DeadlineExceeded)))
	assert.Equal(t, KindConnectionFailure, Classify(errors.New("dial tcp: lookup smtp.example.com: no such host")))
	assert.Equal(t, KindConnectionFailure, Classify(&textproto.Error{Code: 421, Msg: "service not available"}))
	assert.Equal(t, KindProtocolError, Classify(errors.New("smtp: unexpected reply")))
}

func TestClassifyReadTimeoutOnAuthLikePort(t *testing.T) {
	// The local port 53512 contains "535"; a read timeout is still a connection failure.
	err := &net.OpError{
		Op:     "read",
		Net:    "tcp",
		Source: &net.TCPAddr{IP: net.ParseIP("192.168.1.10"), Port: 53512},
		Addr:   &net.TCPAddr{IP: net.ParseIP("142.250.1.108"), Port: 587},
		Err:    os.ErrDeadlineExceeded,
	}
	require.Contains(t, err.Error(), "53512")
	assert.Equal(t, KindConnectionFailure, Classify(err))
	assert.Equal(t, KindConnectionFailure, Classify(fmt.Errorf("deliver: %w", err)))
	assert.Equal(t, KindAuthFailure, Classify(&textproto.Error{Code: 535, Msg: "5.7.8 Username and Password not accepted"}))
}

func TestValidateAddress(t *testing.T) {
	for _, addr := range []string{"bob@example.com", "first.last+tag@mail.example.co.uk", "a_b%c@x-y.io"} {
		assert.True(t, ValidateAddress(addr), addr)
	}
	for _, addr := range []string{"", "bob", "bob@", "@example.com", "bob@example", "bob@example.c", "bob smith@example.com"} {
		assert.False(t, ValidateAddress(addr), addr)
	}
}

func TestRenderHTML(t *testing.T) {
	html, err := RenderHTML("Hello <team>", "Line one\n<b>bold</b> <script>alert(1)</script>\n<a href=\"https://example.com\" onclick=\"x()\">link</a>")
	require.NoError(t, err)

	assert.Contains(t, html, "Hello &lt;team&gt;")
	assert.Contains(t, html, "Line one<br><b>bold</b>")
	assert.NotContains(t, html, "<script>")
	assert.NotContains(t, html, "onclick")
	assert.Contains(t, html, `href="https://example.com"`)
	assert.Contains(t, html, footer)
}
