package mapper

import (
	"tapdbridge.app/bridge/internal/ticket"
)

const envelopeKey = "record"

// typeHintKeys are checked in order on a bare (non-enveloped) payload.
var typeHintKeys = []string{"ticket_type", "type", "类型"}

// envelopeHintKeys are checked in order next to an envelope's record key.
var envelopeHintKeys = []string{"ticket_type", "type"}

// Classify determines the ticket type for an inbound payload and returns
// the working record with the routing keys stripped. It never fails: an
// unrecognized or absent hint falls back to a field heuristic, and the
// worst case is the story default.
func Classify(payload *ticket.Record) (ticket.Type, *ticket.Record) {
	working := payload
	hint, hinted := "", false

	if inner, ok := payload.Get(envelopeKey); ok {
		if rec, ok := inner.(*ticket.Record); ok {
			working = rec
		} else {
			// Envelope with a non-object record; nothing to map.
			working = ticket.NewRecord()
		}
		hint, hinted = firstPresent(payload, envelopeHintKeys)
		if !hinted {
			// Enveloped payloads default to story outright.
			hint, hinted = "story", true
		}
	} else {
		hint, hinted = firstPresent(payload, typeHintKeys)
	}

	t, recognized := ticket.ParseType(hint)
	if !hinted || !recognized {
		// Heuristic: a title-equivalent label means a bug report.
		if working.Has("标题") || working.Has("title") {
			t = ticket.TypeBug
		} else {
			t = ticket.TypeStory
		}
	}

	// Strip routing keys so they are never mistaken for data fields.
	for _, key := range typeHintKeys {
		working.Delete(key)
	}

	return t, working
}

// firstPresent returns the first hint value found among candidate keys, in
// the fixed order given.
func firstPresent(rec *ticket.Record, keys []string) (string, bool) {
	for _, key := range keys {
		if v, ok := rec.Get(key); ok {
			return asString(v), true
		}
	}
	return "", false
}
