package core

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/Messzola/internal/domain"
	"github.com/pion/webrtc/v4"
)

// Inbound envelope tags.
const (
	TagSend           = "send"
	TagTyping         = "typing"
	TagRTCJoin        = "rtc-join"
	TagRTCLeave       = "rtc-leave"
	TagRTCOffer       = "rtc-offer"
	TagRTCAnswer      = "rtc-answer"
	TagRTCICE         = "rtc-ice"
	TagRTCCallStart   = "rtc-call-start"
	TagRTCCallDecline = "rtc-call-decline"
	TagRTCCallCancel  = "rtc-call-cancel"
	TagRTCCallEnd     = "rtc-call-end"
)

var (
	ErrMalformedEnvelope = errors.New("malformed envelope")
	ErrUnknownEnvelope   = errors.New("unknown envelope type")
)

// Inbound is a decoded client envelope. The set is closed: only the types
// below implement it, so a type switch in the dispatcher covers every case.
type Inbound interface {
	Tag() string
	Room() domain.RoomID
	isInbound()
}

type SendMessage struct {
	RoomID   domain.RoomID
	Text     string
	Type     domain.MessageType
	Metadata json.RawMessage
}

type Typing struct {
	RoomID domain.RoomID
	On     bool
}

type Join struct{ RoomID domain.RoomID }

type Leave struct{ RoomID domain.RoomID }

// Offer, Answer and ICE are relayed to To as-is, tagged with the sender.
// The payload is checked against the WebRTC shape but kept verbatim.
type Offer struct {
	RoomID domain.RoomID
	To     domain.UserID
	SDP    json.RawMessage
}

type Answer struct {
	RoomID domain.RoomID
	To     domain.UserID
	SDP    json.RawMessage
}

type ICE struct {
	RoomID    domain.RoomID
	To        domain.UserID
	Candidate json.RawMessage
}

type CallStart struct {
	RoomID     domain.RoomID
	CallerName string
}

type CallDecline struct{ RoomID domain.RoomID }

type CallCancel struct{ RoomID domain.RoomID }

// CallEnd carries the caller-reported outcome; empty means completed.
type CallEnd struct {
	RoomID domain.RoomID
	Status domain.CallStatus
}

func (SendMessage) Tag() string { return TagSend }
func (Typing) Tag() string      { return TagTyping }
func (Join) Tag() string        { return TagRTCJoin }
func (Leave) Tag() string       { return TagRTCLeave }
func (Offer) Tag() string       { return TagRTCOffer }
func (Answer) Tag() string      { return TagRTCAnswer }
func (ICE) Tag() string         { return TagRTCICE }
func (CallStart) Tag() string   { return TagRTCCallStart }
func (CallDecline) Tag() string { return TagRTCCallDecline }
func (CallCancel) Tag() string  { return TagRTCCallCancel }
func (CallEnd) Tag() string     { return TagRTCCallEnd }

func (e SendMessage) Room() domain.RoomID { return e.RoomID }
func (e Typing) Room() domain.RoomID      { return e.RoomID }
func (e Join) Room() domain.RoomID        { return e.RoomID }
func (e Leave) Room() domain.RoomID       { return e.RoomID }
func (e Offer) Room() domain.RoomID       { return e.RoomID }
func (e Answer) Room() domain.RoomID      { return e.RoomID }
func (e ICE) Room() domain.RoomID         { return e.RoomID }
func (e CallStart) Room() domain.RoomID   { return e.RoomID }
func (e CallDecline) Room() domain.RoomID { return e.RoomID }
func (e CallCancel) Room() domain.RoomID  { return e.RoomID }
func (e CallEnd) Room() domain.RoomID     { return e.RoomID }

func (SendMessage) isInbound() {}
func (Typing) isInbound()      {}
func (Join) isInbound()        {}
func (Leave) isInbound()       {}
func (Offer) isInbound()       {}
func (Answer) isInbound()      {}
func (ICE) isInbound()         {}
func (CallStart) isInbound()   {}
func (CallDecline) isInbound() {}
func (CallCancel) isInbound()  {}
func (CallEnd) isInbound()     {}

// rawEnvelope is the flat wire shape shared by all inbound envelopes.
type rawEnvelope struct {
	T          string             `json:"t"`
	RoomID     domain.RoomID      `json:"roomId"`
	To         domain.UserID      `json:"to"`
	Text       string             `json:"text"`
	Type       domain.MessageType `json:"type"`
	Metadata   json.RawMessage    `json:"metadata"`
	On         bool               `json:"on"`
	SDP        json.RawMessage    `json:"sdp"`
	Candidate  json.RawMessage    `json:"candidate"`
	CallerName string             `json:"callerName"`
	Status     domain.CallStatus  `json:"status"`
}

// Decode parses one client frame. Unknown tags yield ErrUnknownEnvelope,
// anything that is not a JSON object of the expected shape ErrMalformedEnvelope.
func Decode(data []byte) (Inbound, error) {
	var raw rawEnvelope
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	switch raw.T {
	case TagSend:
		typ := raw.Type
		if typ == "" {
			typ = domain.MessageText
		}
		return SendMessage{RoomID: raw.RoomID, Text: raw.Text, Type: typ, Metadata: raw.Metadata}, nil
	case TagTyping:
		return Typing{RoomID: raw.RoomID, On: raw.On}, nil
	case TagRTCJoin:
		return Join{RoomID: raw.RoomID}, nil
	case TagRTCLeave:
		return Leave{RoomID: raw.RoomID}, nil
	case TagRTCOffer, TagRTCAnswer:
		if raw.To == "" || !present(raw.SDP) {
			return nil, fmt.Errorf("%w: %s without target or sdp", ErrMalformedEnvelope, raw.T)
		}
		var sd webrtc.SessionDescription
		if err := json.Unmarshal(raw.SDP, &sd); err != nil {
			return nil, fmt.Errorf("%w: %s sdp: %v", ErrMalformedEnvelope, raw.T, err)
		}
		if raw.T == TagRTCOffer {
			return Offer{RoomID: raw.RoomID, To: raw.To, SDP: raw.SDP}, nil
		}
		return Answer{RoomID: raw.RoomID, To: raw.To, SDP: raw.SDP}, nil
	case TagRTCICE:
		if raw.To == "" || !present(raw.Candidate) {
			return nil, fmt.Errorf("%w: %s without target or candidate", ErrMalformedEnvelope, raw.T)
		}
		var cand webrtc.ICECandidateInit
		if err := json.Unmarshal(raw.Candidate, &cand); err != nil {
			return nil, fmt.Errorf("%w: %s candidate: %v", ErrMalformedEnvelope, raw.T, err)
		}
		return ICE{RoomID: raw.RoomID, To: raw.To, Candidate: raw.Candidate}, nil
	case TagRTCCallStart:
		return CallStart{RoomID: raw.RoomID, CallerName: raw.CallerName}, nil
	case TagRTCCallDecline:
		return CallDecline{RoomID: raw.RoomID}, nil
	case TagRTCCallCancel:
		return CallCancel{RoomID: raw.RoomID}, nil
	case TagRTCCallEnd:
		return CallEnd{RoomID: raw.RoomID, Status: raw.Status}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEnvelope, raw.T)
	}
}

func present(m json.RawMessage) bool {
	return len(m) > 0 && string(m) != "null"
}
