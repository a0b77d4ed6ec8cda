package signal

import (
	"context"
	"time"

	"github.com/dkeye/Messzola/internal/core"
	"github.com/dkeye/Messzola/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("conn", c.ID()).Msg("writePump ctx done")
			ctl.Orch.OnDisconnect(c)
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Str("conn", c.ID()).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				ctl.Orch.OnDisconnect(c)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("module", "signal").Str("conn", c.ID()).Msg("writePump write error")
				ctl.Orch.OnDisconnect(c)
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, uid domain.UserID, c *WsSignalConn) {
	defer func() {
		log.Debug().Str("module", "signal").Str("user", string(uid)).Str("conn", c.ID()).Msg("readPump closing")
		ctl.Orch.OnDisconnect(c)
		cancel()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "signal").Str("user", string(uid)).Msg("readPump read error")
			}
			return
		}
		ctl.Orch.OnFrame(ctx, c, core.Frame(data))
	}
}
