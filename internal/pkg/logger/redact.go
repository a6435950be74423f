package logger

import "strings"

// RedactEmail masks an email address for safe logging.
// "hanako.sato@example.jp" → "ha***@example.jp"
// Short local parts (≤2 chars) are fully masked: "ab@example.jp" → "***@example.jp"
func RedactEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***@***"
	}
	name := parts[0]
	if len(name) > 2 {
		return name[:2] + "***@" + parts[1]
	}
	return "***@" + parts[1]
}

// RedactIP keeps the network part of an IPv4 address: "203.0.113.42" → "203.0.113.x".
// Anything that is not a dotted quad is returned masked.
func RedactIP(ip string) string {
	if i := strings.LastIndex(ip, "."); i > 0 && strings.Count(ip, ".") == 3 {
		return ip[:i] + ".x"
	}
	if ip == "" {
		return ""
	}
	return "***"
}
