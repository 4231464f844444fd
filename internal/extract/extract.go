// Package extract recovers the best-available plain text from a Gmail
// message payload tree.
package extract

import (
	"encoding/base64"
	"strings"

	"golang.org/x/net/html"
	"google.golang.org/api/gmail/v1"
)

const (
	mimeTextPlain = "text/plain"
	mimeTextHTML  = "text/html"
)

// Body walks the payload tree and returns the first usable text. At each
// level a plain-text part wins over an HTML part, and only when neither is
// present are container parts recursed into. Payloads carrying inline body
// data directly (no parts list) are decoded by their own MIME type. Returns
// "" when nothing decodable is found; callers treat that as nothing to
// process, not an error.
func Body(payload *gmail.MessagePart) string {
	if payload == nil {
		return ""
	}
	if len(payload.Parts) > 0 {
		return fromParts(payload.Parts)
	}

	data := inlineData(payload)
	if data == "" {
		return ""
	}
	decoded, err := decodeBody(data)
	if err != nil {
		return ""
	}
	if payload.MimeType == mimeTextHTML {
		return StripTags(decoded)
	}
	return decoded
}

func fromParts(parts []*gmail.MessagePart) string {
	for _, part := range parts {
		if part.MimeType == mimeTextPlain {
			if text, err := decodeBody(inlineData(part)); err == nil && text != "" {
				return text
			}
		}
	}
	for _, part := range parts {
		if part.MimeType == mimeTextHTML {
			if raw, err := decodeBody(inlineData(part)); err == nil && raw != "" {
				if text := StripTags(raw); text != "" {
					return text
				}
			}
		}
	}
	for _, part := range parts {
		if len(part.Parts) > 0 {
			if text := Body(part); text != "" {
				return text
			}
		}
	}
	return ""
}

func inlineData(part *gmail.MessagePart) string {
	if part == nil || part.Body == nil {
		return ""
	}
	return part.Body.Data
}

// decodeBody decodes the base64url body data Gmail returns. Padding varies
// between messages, so it is stripped before decoding.
func decodeBody(data string) (string, error) {
	if data == "" {
		return "", nil
	}
	raw, err := base64.URLEncoding.WithPadding(base64.NoPadding).
		DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// StripTags removes markup and returns the document's text nodes joined by
// single spaces. Tag removal only: entities are left to the tokenizer and
// script/style contents are not excluded.
func StripTags(s string) string {
	tok := html.NewTokenizer(strings.NewReader(s))
	var chunks []string
	for {
		switch tok.Next() {
		case html.ErrorToken:
			return strings.Join(chunks, " ")
		case html.TextToken:
			if text := strings.TrimSpace(tok.Token().Data); text != "" {
				chunks = append(chunks, text)
			}
		}
	}
}
