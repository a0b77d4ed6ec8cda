package app

import (
	"github.com/dkeye/Messzola/internal/core"
	"github.com/dkeye/Messzola/internal/domain"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
	DropFrame
)

// Policy decides what happens to a connection whose send buffer is full.
type Policy interface {
	OnBackPressure(user domain.UserID, conn core.SignalConnection) BackpressureAction
}

type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(domain.UserID, core.SignalConnection) BackpressureAction {
	return KickMember
}
