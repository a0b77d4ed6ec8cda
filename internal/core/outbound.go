package core

import (
	"encoding/json"

	"github.com/dkeye/Messzola/internal/domain"
)

// Outbound envelope tags.
const (
	TagConnected        = "connected"
	TagMsg              = "msg"
	TagRTCPeers         = "rtc-peers"
	TagRTCJoined        = "rtc-joined"
	TagRTCLeft          = "rtc-left"
	TagRTCCallIncoming  = "rtc-call-incoming"
	TagRTCCallDeclined  = "rtc-call-declined"
	TagRTCCallCancelled = "rtc-call-cancelled"
	TagRoomDisbanded    = "room-disbanded"
	TagRoomUpdated      = "room-updated"
	TagError            = "error"
)

type ConnectedOut struct {
	T    string       `json:"t"`
	User *domain.User `json:"user"`
}

type MsgOut struct {
	T       string          `json:"t"`
	RoomID  domain.RoomID   `json:"roomId"`
	Message *domain.Message `json:"message"`
}

type TypingOut struct {
	T      string        `json:"t"`
	RoomID domain.RoomID `json:"roomId"`
	From   domain.UserID `json:"from"`
	On     bool          `json:"on"`
}

type PeersOut struct {
	T      string          `json:"t"`
	RoomID domain.RoomID   `json:"roomId"`
	Peers  []domain.UserID `json:"peers"`
}

// PeerOut is shared by rtc-joined, rtc-left, rtc-call-declined and rtc-call-cancelled.
type PeerOut struct {
	T      string        `json:"t"`
	RoomID domain.RoomID `json:"roomId"`
	UserID domain.UserID `json:"userId"`
}

// RelayOut is an offer, answer or ICE candidate forwarded to its target.
type RelayOut struct {
	T         string          `json:"t"`
	RoomID    domain.RoomID   `json:"roomId"`
	To        domain.UserID   `json:"to"`
	From      domain.UserID   `json:"from"`
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

type CallIncomingOut struct {
	T          string        `json:"t"`
	RoomID     domain.RoomID `json:"roomId"`
	From       domain.UserID `json:"from"`
	CallerName string        `json:"callerName"`
}

type RoomDisbandedOut struct {
	T      string        `json:"t"`
	RoomID domain.RoomID `json:"roomId"`
}

type RoomUpdatedOut struct {
	T    string       `json:"t"`
	Room *domain.Room `json:"room"`
}

type ErrorOut struct {
	T       string `json:"t"`
	Message string `json:"message"`
}

func Connected(u *domain.User) ConnectedOut { return ConnectedOut{T: TagConnected, User: u} }

func Msg(m *domain.Message) MsgOut { return MsgOut{T: TagMsg, RoomID: m.RoomID, Message: m} }

func TypingNotice(room domain.RoomID, from domain.UserID, on bool) TypingOut {
	return TypingOut{T: TagTyping, RoomID: room, From: from, On: on}
}

// Peers never serializes a null list: an empty room is "peers":[].
func Peers(room domain.RoomID, peers []domain.UserID) PeersOut {
	if peers == nil {
		peers = []domain.UserID{}
	}
	return PeersOut{T: TagRTCPeers, RoomID: room, Peers: peers}
}

func Joined(room domain.RoomID, user domain.UserID) PeerOut {
	return PeerOut{T: TagRTCJoined, RoomID: room, UserID: user}
}

func Left(room domain.RoomID, user domain.UserID) PeerOut {
	return PeerOut{T: TagRTCLeft, RoomID: room, UserID: user}
}

func CallDeclined(room domain.RoomID, user domain.UserID) PeerOut {
	return PeerOut{T: TagRTCCallDeclined, RoomID: room, UserID: user}
}

func CallCancelled(room domain.RoomID, user domain.UserID) PeerOut {
	return PeerOut{T: TagRTCCallCancelled, RoomID: room, UserID: user}
}

func CallIncoming(room domain.RoomID, from domain.UserID, callerName string) CallIncomingOut {
	return CallIncomingOut{T: TagRTCCallIncoming, RoomID: room, From: from, CallerName: callerName}
}

// Relay tags an inbound offer, answer or ICE envelope with its sender.
func Relay(in Inbound, from domain.UserID) RelayOut {
	out := RelayOut{T: in.Tag(), RoomID: in.Room(), From: from}
	switch e := in.(type) {
	case Offer:
		out.To, out.SDP = e.To, e.SDP
	case Answer:
		out.To, out.SDP = e.To, e.SDP
	case ICE:
		out.To, out.Candidate = e.To, e.Candidate
	}
	return out
}

func RoomDisbandedNotice(room domain.RoomID) RoomDisbandedOut {
	return RoomDisbandedOut{T: TagRoomDisbanded, RoomID: room}
}

func RoomUpdated(r *domain.Room) RoomUpdatedOut { return RoomUpdatedOut{T: TagRoomUpdated, Room: r} }

func Error(msg string) ErrorOut { return ErrorOut{T: TagError, Message: msg} }
