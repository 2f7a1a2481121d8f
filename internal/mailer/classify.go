package mailer

import (
	"context"
	"errors"
	"io"
	"net"
	"net/textproto"
	"strings"

	"github.com/wneessen/go-mail"
)

var (
	authMarkers       = []string{"username and password not accepted", "authentication failed", "auth failed"}
	connectionMarkers = []string{"connection refused", "connection reset", "no such host", "i/o timeout", "network is unreachable", "dial", "broken pipe", "eof"}
)

// Classify maps a delivery error onto a FailureKind.
func Classify(err error) FailureKind {
	if err == nil {
		return KindNone
	}

	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		switch {
		case tpErr.Code == 535 || tpErr.Code == 534 || tpErr.Code == 530:
			return KindAuthFailure
		case tpErr.Code == 550 || tpErr.Code == 553 || tpErr.Code == 501:
			return KindInvalidRecipient
		case tpErr.Code == 421:
			return KindConnectionFailure
		default:
			return KindProtocolError
		}
	}

	var sendErr *mail.SendError
	if errors.As(err, &sendErr) && sendErr.Reason == mail.ErrSMTPRcptTo {
		return KindInvalidRecipient
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, io.EOF) || errors.Is(err, context.DeadlineExceeded) {
		return KindConnectionFailure
	}

	text := strings.ToLower(strings.TrimSpace(err.Error()))
	for _, marker := range authMarkers {
		if strings.Contains(text, marker) {
			return KindAuthFailure
		}
	}
	for _, marker := range connectionMarkers {
		if strings.Contains(text, marker) {
			return KindConnectionFailure
		}
	}

	if errors.As(err, &sendErr) || strings.Contains(text, "smtp") {
		return KindProtocolError
	}
	return KindUnknown
}
