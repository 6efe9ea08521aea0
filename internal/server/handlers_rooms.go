package server

import (
	"net/http"

	"music-battle/internal/room"
	"music-battle/internal/store"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleHealth(c *gin.Context) {
	rooms, err := s.store.ListAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"rooms":   len(rooms),
		"clients": s.ws.Count(""),
	})
}

func (s *Server) handleListRooms(c *gin.Context) {
	var query listQuery
	if !bindQuery(c, &query, listQueryMessages) {
		return
	}
	rooms, err := s.store.ListAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if query.Status != "" {
		for code, doc := range rooms {
			if string(doc.Status) != query.Status {
				delete(rooms, code)
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

func (s *Server) handleReadRoom(c *gin.Context) {
	code, ok := bindRoomCode(c)
	if !ok {
		return
	}
	doc, ok, err := s.store.Read(c.Request.Context(), code)
	if err != nil {
		respondError(c, err)
		return
	}
	if !ok {
		respondError(c, store.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) handleWriteRoom(c *gin.Context) {
	code, ok := bindRoomCode(c)
	if !ok {
		return
	}
	var doc room.Room
	if !bindBody(c, &doc, "room document") {
		return
	}
	if err := s.store.Write(c.Request.Context(), code, doc); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleInsertRoom(c *gin.Context) {
	code, ok := bindRoomCode(c)
	if !ok {
		return
	}
	var doc room.Room
	if !bindBody(c, &doc, "room document") {
		return
	}
	ctx := c.Request.Context()
	if inserter, ok := s.store.(store.Inserter); ok {
		if err := inserter.Insert(ctx, code, doc); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusCreated)
		return
	}
	// Not atomic, but stores without Insert cannot do better.
	if _, exists, err := s.store.Read(ctx, code); err != nil {
		respondError(c, err)
		return
	} else if exists {
		respondError(c, store.ErrExists)
		return
	}
	if err := s.store.Write(ctx, code, doc); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

func (s *Server) handleUpdateRoom(c *gin.Context) {
	code, ok := bindRoomCode(c)
	if !ok {
		return
	}
	var fields room.Fields
	if !bindBody(c, &fields, "fields") {
		return
	}
	if len(fields) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
		return
	}
	if err := s.store.Update(c.Request.Context(), code, fields); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDeleteRoom(c *gin.Context) {
	code, ok := bindRoomCode(c)
	if !ok {
		return
	}
	if err := s.store.Delete(c.Request.Context(), code); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
