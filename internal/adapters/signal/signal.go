package signal

import (
	"context"
	"net/http"
	"time"

	"github.com/dkeye/Messzola/internal/app/orch"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type Options struct {
	ReadLimit  int64
	SendBuffer int
	// PingPeriod bounds how long a read may block: two missed heartbeats end the connection.
	PingPeriod  time.Duration
	CheckOrigin func(*http.Request) bool
}

type SignalWSController struct {
	Orch     *orch.Orchestrator
	opts     Options
	upgrader websocket.Upgrader
}

func NewSignalWSController(o *orch.Orchestrator, opts Options) *SignalWSController {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	return &SignalWSController{
		Orch: o,
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     opts.CheckOrigin,
		},
	}
}

// HandleSignal upgrades the request, authenticates the token query parameter
// and starts the pumps. Rejected handshakes are closed with 4001 or 4002.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	token := c.Query("token")

	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	conn := newWsSignalConn(ws, ctl.opts.SendBuffer)
	log.Debug().Str("module", "signal").Str("conn", conn.ID()).Str("remote", c.ClientIP()).Msg("new WS connection")

	user, err := ctl.Orch.Registry.Accept(ctx, conn, token)
	if err != nil {
		return
	}

	if ctl.opts.ReadLimit > 0 {
		ws.SetReadLimit(ctl.opts.ReadLimit)
	}
	ws.SetPongHandler(func(string) error {
		ctl.Orch.Registry.MarkAlive(conn)
		ctl.extendDeadline(conn)
		return nil
	})
	ctl.extendDeadline(conn)

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, user.ID, conn)
}

func (ctl *SignalWSController) extendDeadline(c *WsSignalConn) {
	if ctl.opts.PingPeriod <= 0 {
		return
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(2*ctl.opts.PingPeriod + writeWait))
}
