package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/dkeye/Relay/internal/adapters/signal"
	"github.com/dkeye/Relay/internal/app"
	"github.com/dkeye/Relay/internal/app/orch"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type handlers struct {
	orch *orch.Orchestrator
	gate *app.Gate
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrNoActiveCall):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorizedCall), errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAuthentication):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func caller(c *gin.Context) domain.User {
	u, _ := c.MustGet(userKey).(domain.User)
	return u
}

func roomParam(c *gin.Context) (domain.RoomID, bool) {
	room, err := domain.ParseRoomID(c.Param("id"))
	if err != nil {
		fail(c, err)
		return "", false
	}
	return room, true
}

func (h *handlers) createSession(c *gin.Context) {
	var in struct {
		Token string `json:"token"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, domain.NewValidationError("token", "required"))
		return
	}
	user, err := h.gate.Admit(c.Request.Context(), in.Token)
	if err != nil {
		fail(c, err)
		return
	}
	s := sessions.Default(c)
	s.Set(signal.SessionTokenKey, in.Token)
	if err := s.Save(); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *handlers) deleteSession(c *gin.Context) {
	s := sessions.Default(c)
	s.Clear()
	if err := s.Save(); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) listRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.orch.Rooms.List()})
}

func (h *handlers) roomMembers(c *gin.Context) {
	room, ok := roomParam(c)
	if !ok {
		return
	}
	stored, err := h.orch.Memberships.RoomMembers(c.Request.Context(), room)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"roomId":      room,
		"online":      h.orch.Rooms.Members(room),
		"memberships": stored,
		"peers":       h.orch.Peers.Peers(room),
	})
}

type callView struct {
	RoomID       domain.RoomID   `json:"roomId"`
	Initiator    domain.UserID   `json:"initiator"`
	CallType     domain.CallType `json:"callType"`
	Participants []domain.UserID `json:"participants"`
	Answered     bool            `json:"answered"`
	StartedAt    time.Time       `json:"startedAt"`
}

func (h *handlers) roomCall(c *gin.Context) {
	room, ok := roomParam(c)
	if !ok {
		return
	}
	sess, ok := h.orch.Calls.Session(room)
	if !ok {
		fail(c, domain.ErrNoActiveCall)
		return
	}
	c.JSON(http.StatusOK, callView{
		RoomID:       sess.RoomID,
		Initiator:    sess.Initiator,
		CallType:     sess.CallType,
		Participants: sess.ParticipantIDs(),
		Answered:     len(sess.Answer) > 0,
		StartedAt:    sess.StartedAt,
	})
}

// memberOf reports whether user holds a durable membership of room.
func (h *handlers) memberOf(c *gin.Context, room domain.RoomID, user domain.UserID) (bool, error) {
	ids, err := h.orch.Memberships.RoomMembers(c.Request.Context(), room)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		if id == user {
			return true, nil
		}
	}
	return false, nil
}

// addMembership is open to existing members only. The first member of a room
// is written out of band with `relay member add`.
func (h *handlers) addMembership(c *gin.Context) {
	room, ok := roomParam(c)
	if !ok {
		return
	}
	by := caller(c).ID
	member, err := h.memberOf(c, room, by)
	if err != nil {
		fail(c, err)
		return
	}
	if !member {
		fail(c, domain.ErrForbidden)
		return
	}
	var in struct {
		UserID string `json:"userId"`
	}
	if err := c.ShouldBindJSON(&in); err != nil || in.UserID == "" {
		fail(c, domain.NewValidationError("userId", "required"))
		return
	}
	if err := h.orch.Memberships.AddMember(c.Request.Context(), room, domain.UserID(in.UserID)); err != nil {
		fail(c, err)
		return
	}
	log.Info().Str("module", "adapters.http").Str("room", string(room)).Str("user", in.UserID).
		Str("by", string(by)).Msg("membership added")
	c.Status(http.StatusNoContent)
}

func (h *handlers) removeMembership(c *gin.Context) {
	room, ok := roomParam(c)
	if !ok {
		return
	}
	user := domain.UserID(c.Param("userId"))
	// a member may always leave; removing someone else takes a membership
	if by := caller(c).ID; by != user {
		member, err := h.memberOf(c, room, by)
		if err != nil {
			fail(c, err)
			return
		}
		if !member {
			fail(c, domain.ErrForbidden)
			return
		}
	}
	if err := h.orch.Memberships.RemoveMember(c.Request.Context(), room, user); err != nil {
		fail(c, err)
		return
	}
	log.Info().Str("module", "adapters.http").Str("room", string(room)).Str("user", string(user)).
		Str("by", string(caller(c).ID)).Msg("membership removed")
	c.Status(http.StatusNoContent)
}

// me reports the caller's identity and the rooms it is currently joined to.
func (h *handlers) me(c *gin.Context) {
	user := caller(c)
	if stored, err := h.orch.Users.FindByID(c.Request.Context(), user.ID); err == nil {
		user = stored
	}
	c.JSON(http.StatusOK, gin.H{
		"user":   user,
		"online": h.orch.Registry.Online(user.ID),
		"rooms":  h.orch.Rooms.RoomsOf(user.ID),
	})
}

func (h *handlers) getUser(c *gin.Context) {
	user, err := h.orch.Users.FindByID(c.Request.Context(), domain.UserID(c.Param("id")))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// putUser lets an identity edit its own record only.
func (h *handlers) putUser(c *gin.Context) {
	id := domain.UserID(c.Param("id"))
	if id != caller(c).ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "can only edit own record"})
		return
	}
	var in struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, domain.NewValidationError("data", "malformed"))
		return
	}
	user := domain.User{ID: id}
	if err := user.SetName(in.FirstName, in.LastName); err != nil {
		fail(c, err)
		return
	}
	if err := h.orch.Users.Upsert(c.Request.Context(), user); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
