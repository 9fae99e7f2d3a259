package email

import (
	"net"
	"strings"
)

// Diagnose clasifica un error de envío en un código corto para logs y
// reporta si conviene reintentar (pedir el código de nuevo suele alcanzar).
func Diagnose(err error) (code string, temporary bool) {
	if err == nil {
		return "unknown", false
	}
	s := strings.ToLower(err.Error())

	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return "timeout", true
	}
	switch {
	case strings.Contains(s, "timeout"):
		return "timeout", true
	case strings.Contains(s, "connection refused"),
		strings.Contains(s, "no such host"),
		strings.Contains(s, "dial tcp"):
		return "dial", true
	case strings.Contains(s, "x509:"),
		strings.Contains(s, "tls") && strings.Contains(s, "handshake"):
		return "tls", false
	case strings.Contains(s, "535"),
		strings.Contains(s, "authentication failed"),
		strings.Contains(s, "username and password not accepted"):
		return "auth", false
	case strings.Contains(s, "rate limit"),
		strings.Contains(s, "try again later"),
		strings.Contains(s, "451"), strings.Contains(s, "421"):
		return "rate_limited", true
	case strings.Contains(s, "5.1.1"),
		strings.Contains(s, "user unknown"),
		strings.Contains(s, "mailbox not found"):
		return "invalid_recipient", false
	}
	if _, ok := err.(net.Error); ok {
		return "network", true
	}
	return "unknown", false
}
