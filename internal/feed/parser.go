package feed

import (
	"encoding/json"
	"strings"

	"github.com/ernie/tourney-tracker/internal/domain"
)

// LineKind classifies a single line of a feed frame
type LineKind int

const (
	LineUnclassified LineKind = iota
	LineRoomMarker
	LineTournamentCreate
	LineTournamentEnd
	LineTournamentForceEnd
)

// Line is one classified line from a feed frame
type Line struct {
	Kind LineKind
	Raw  string
	Data interface{}
}

// RoomMarkerData carries the room identifier from a context marker
type RoomMarkerData struct {
	Room string
}

// CreateData carries the fields of a tournament create line
type CreateData struct {
	Format string
	Name   string // empty when the event carried no display name
}

// EndData carries the decoded payload of a tournament end line
type EndData struct {
	Results domain.Results // nil when absent or unparseable
}

// Message-type prefixes of the feed protocol
const (
	roomMarkerSentinel = ">"
	createPrefix       = "|tournament|create|"
	endPrefix          = "|tournament|end|"
	forceEndPrefix     = "|tournament|forceend"
	expirePrefix       = "|tournament|expire"
)

// Field positions in a pipe-split create line
const (
	createFormatField = 3
	createNameField   = 6
)

// ParseFrame splits a raw feed frame into classified lines in stream
// order. Empty lines are skipped; lines matching no known prefix come
// back as LineUnclassified so the caller can count or ignore them.
// Room attribution is not applied here — classification is orthogonal
// to the room cursor, which the tracker owns.
func ParseFrame(frame string) []Line {
	var lines []Line
	for _, raw := range strings.Split(frame, "\n") {
		raw = strings.TrimRight(raw, "\r")
		if raw == "" {
			continue
		}
		lines = append(lines, classifyLine(raw))
	}
	return lines
}

// classifyLine matches a single line against the message-type
// prefixes, in priority order
func classifyLine(raw string) Line {
	line := Line{Kind: LineUnclassified, Raw: raw}

	if strings.HasPrefix(raw, roomMarkerSentinel) {
		line.Kind = LineRoomMarker
		line.Data = RoomMarkerData{Room: raw[len(roomMarkerSentinel):]}
		return line
	}

	if strings.HasPrefix(raw, createPrefix) {
		fields := strings.Split(raw, "|")
		data := CreateData{}
		if len(fields) > createFormatField {
			data.Format = fields[createFormatField]
		}
		if len(fields) > createNameField {
			data.Name = fields[createNameField]
		}
		line.Kind = LineTournamentCreate
		line.Data = data
		return line
	}

	if strings.HasPrefix(raw, endPrefix) {
		line.Kind = LineTournamentEnd
		line.Data = EndData{Results: parseResults(raw[len(endPrefix):])}
		return line
	}

	if strings.HasPrefix(raw, forceEndPrefix) || strings.HasPrefix(raw, expirePrefix) {
		line.Kind = LineTournamentForceEnd
		return line
	}

	return line
}

// parseResults decodes the JSON payload of an end line. Malformed
// payloads yield nil results rather than an error: the end event is
// still actionable without standings.
func parseResults(payload string) domain.Results {
	var body struct {
		Results [][]string `json:"results"`
	}
	if err := json.Unmarshal([]byte(payload), &body); err != nil {
		return nil
	}
	if len(body.Results) == 0 {
		return nil
	}
	// Winner, runner-up, third place at most
	if len(body.Results) > 3 {
		body.Results = body.Results[:3]
	}
	return domain.Results(body.Results)
}
