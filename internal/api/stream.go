// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// CutManager - FFmpeg 剪辑任务管理工具

package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/ZSC714725/cutmanager/internal/job"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// 跨域由 cors 中间件统一处理
	CheckOrigin: func(r *http.Request) bool { return true },
}

func sinceParam(c *gin.Context) (uint64, error) {
	s := c.DefaultQuery("since", "0")
	return strconv.ParseUint(s, 10, 64)
}

func (h *Handler) streamJob(c *gin.Context) (*job.Job, uint64, bool) {
	j, err := h.store.Get(c.Param("id"))
	if err != nil {
		errResp(c, http.StatusNotFound, "Unknown job ID", err.Error())
		return nil, 0, false
	}
	since, err := sinceParam(c)
	if err != nil {
		errResp(c, http.StatusBadRequest, "Invalid since", err.Error())
		return nil, 0, false
	}
	return j, since, true
}

// follow calls send for every event after since, in order, until the
// terminal event was sent, send fails or ctx is done.
func follow(ctx context.Context, log *job.EventLog, since uint64, send func(job.Event) error) error {
	for {
		updated := log.Updated()
		for _, ev := range log.Since(since) {
			if err := send(ev); err != nil {
				return err
			}
			since = ev.Seq
			if ev.Terminal() {
				return nil
			}
		}

		select {
		case <-updated:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stream GET /api/v1/jobs/:id/stream
//
// Server-sent events from ?since=N until the terminal event.
func (h *Handler) Stream(c *gin.Context) {
	j, since, ok := h.streamJob(c)
	if !ok {
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	_ = follow(c.Request.Context(), j.Log(), since, func(ev job.Event) error {
		c.Render(-1, sse.Event{
			Id:    strconv.FormatUint(ev.Seq, 10),
			Event: string(ev.Type),
			Data:  eventToAPI(ev),
		})
		c.Writer.Flush()
		return nil
	})
}

// WebSocket GET /api/v1/jobs/:id/ws
//
// Same events as Stream, one JSON message each. The server closes the
// connection after the terminal event.
func (h *Handler) WebSocket(c *gin.Context) {
	j, since, ok := h.streamJob(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 已经写了错误响应
		return
	}
	defer conn.Close()

	// 读循环只用于发现客户端断开
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	err = follow(ctx, j.Log(), since, func(ev job.Event) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteJSON(eventToAPI(ev))
	})
	if err == nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "finished")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteTimeout))
	}
}
