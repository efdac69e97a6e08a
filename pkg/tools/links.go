package tools

import (
	"net/url"
	"strings"
)

// sanitizePhone keeps digits only, dropping +, spaces and separators.
// wa.me links take the bare international number.
func sanitizePhone(number string) string {
	var b strings.Builder
	for _, r := range number {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// WhatsAppLink builds a wa.me chat link, with prefilled text if given.
func WhatsAppLink(number, text string) string {
	link := "https://wa.me/" + sanitizePhone(number)
	if text != "" {
		link += "?text=" + url.QueryEscape(text)
	}
	return link
}

// TelegramLink builds a t.me link for a username or phone number.
func TelegramLink(handle, text string) string {
	handle = strings.TrimPrefix(handle, "@")
	var link string
	if strings.HasPrefix(handle, "+") || allDigits(handle) {
		link = "https://t.me/+" + sanitizePhone(handle)
	} else {
		link = "https://t.me/" + handle
	}
	if text != "" {
		link += "?text=" + url.QueryEscape(text)
	}
	return link
}

// MailtoLink builds a mailto link with subject and body.
func MailtoLink(to, subject, body string) string {
	q := url.Values{}
	if subject != "" {
		q.Set("subject", subject)
	}
	if body != "" {
		q.Set("body", body)
	}
	link := "mailto:" + to
	if len(q) > 0 {
		link += "?" + q.Encode()
	}
	return link
}

// TelLink builds a tel link for the dialer.
func TelLink(number string) string {
	number = strings.TrimSpace(number)
	if strings.HasPrefix(number, "+") {
		return "tel:+" + sanitizePhone(number)
	}
	return "tel:" + sanitizePhone(number)
}

// CallLink builds a voice call link for the given app.
func CallLink(app, recipient string) string {
	switch strings.ToLower(app) {
	case "whatsapp":
		return "https://wa.me/" + sanitizePhone(recipient)
	case "telegram":
		return TelegramLink(recipient, "")
	default:
		return TelLink(recipient)
	}
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
