package followup

import (
	"strings"
	"unicode"
)

// ReplyClass is the outcome of classifying a free-text customer reply.
type ReplyClass string

const (
	ReplyResolved   ReplyClass = "RESOLVED"
	ReplyUnresolved ReplyClass = "UNRESOLVED"
	ReplyAmbiguous  ReplyClass = "AMBIGUOUS"
)

var positiveKeywords = map[string]bool{
	"resuelto":    true,
	"solucionado": true,
	"ok":          true,
	"bien":        true,
	"sí":          true,
	"si":          true,
}

var negativeKeywords = map[string]bool{
	"no":       true,
	"persiste": true,
	"sigue":    true,
	"problema": true,
	"todavía":  true,
	"todavia":  true,
}

// ClassifyReply matches whole words against the positive and negative
// keyword sets. A positive match wins when both sets match ("el problema
// quedó resuelto"). Anything else is ambiguous and consumes no state.
func ClassifyReply(text string) ReplyClass {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	positive := false
	negative := false
	for _, word := range words {
		if positiveKeywords[word] {
			positive = true
		}
		if negativeKeywords[word] {
			negative = true
		}
	}

	switch {
	case positive:
		return ReplyResolved
	case negative:
		return ReplyUnresolved
	default:
		return ReplyAmbiguous
	}
}
