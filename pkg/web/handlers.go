package web

import (
	"github.com/gofiber/fiber/v2"

	"github.com/miravoice/mira/pkg/contacts"
)

// handleStatus returns the dashboard state snapshot.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.status())
}

// handleConnect starts a session.
func (s *Server) handleConnect(c *fiber.Ctx) error {
	if s.deps.Session == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "session not configured"})
	}
	if err := s.deps.Session.Connect(c.Context()); err != nil {
		s.logger.Warn("web: connect failed", "err", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	s.BroadcastStatus()
	return c.JSON(s.status())
}

// handleDisconnect ends the session.
func (s *Server) handleDisconnect(c *fiber.Ctx) error {
	if s.deps.Session != nil {
		s.deps.Session.Disconnect()
	}
	s.BroadcastStatus()
	return c.JSON(s.status())
}

// MuteRequest is the body for the mute endpoint.
type MuteRequest struct {
	Muted bool `json:"muted"`
}

// handleMute toggles the microphone.
func (s *Server) handleMute(c *fiber.Ctx) error {
	var req MuteRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if s.deps.Session != nil {
		s.deps.Session.SetMuted(req.Muted)
	}
	s.BroadcastStatus()
	return c.JSON(s.status())
}

// handleTranscript returns the transcript window.
func (s *Server) handleTranscript(c *fiber.Ctx) error {
	if s.deps.Transcript == nil {
		return c.JSON([]any{})
	}
	return c.JSON(s.deps.Transcript.Entries())
}

// handleListContacts returns all contacts.
func (s *Server) handleListContacts(c *fiber.Ctx) error {
	if s.deps.Contacts == nil {
		return c.JSON([]any{})
	}
	return c.JSON(s.deps.Contacts.List())
}

// handleCreateContact saves a contact.
func (s *Server) handleCreateContact(c *fiber.Ctx) error {
	if s.deps.Contacts == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "contacts not configured"})
	}
	var contact contacts.Contact
	if err := c.BodyParser(&contact); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if err := s.deps.Contacts.Save(&contact); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(contact)
}

// handleDeleteContact removes a contact.
func (s *Server) handleDeleteContact(c *fiber.Ctx) error {
	if s.deps.Contacts == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "contacts not configured"})
	}
	if err := s.deps.Contacts.Delete(c.Params("id")); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"deleted": true})
}

// handlePersona returns the stored profile.
func (s *Server) handlePersona(c *fiber.Ctx) error {
	if s.deps.Persona == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no persona"})
	}
	p, err := s.deps.Persona.Load()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if p == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no persona"})
	}
	return c.JSON(p)
}

// handleAvatar serves the rendered avatar image.
func (s *Server) handleAvatar(c *fiber.Ctx) error {
	if s.deps.Persona == nil {
		return c.SendStatus(fiber.StatusNotFound)
	}
	return c.SendFile(s.deps.Persona.AvatarPath())
}

// handleCalendarStatus reports the calendar connection.
func (s *Server) handleCalendarStatus(c *fiber.Ctx) error {
	if s.deps.Calendar == nil {
		return c.JSON(fiber.Map{"configured": false, "connected": false})
	}
	resp := fiber.Map{"configured": true, "connected": s.deps.Calendar.IsAuthenticated()}
	if !s.deps.Calendar.IsAuthenticated() {
		resp["auth_url"] = s.deps.Calendar.AuthURL()
	}
	return c.JSON(resp)
}

// handleCalendarAuth redirects to the Google consent page.
func (s *Server) handleCalendarAuth(c *fiber.Ctx) error {
	if s.deps.Calendar == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "calendar not configured"})
	}
	return c.Redirect(s.deps.Calendar.AuthURL(), fiber.StatusTemporaryRedirect)
}

// handleCalendarCallback finishes the OAuth flow.
func (s *Server) handleCalendarCallback(c *fiber.Ctx) error {
	if s.deps.Calendar == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "calendar not configured"})
	}
	code := c.Query("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing authorization code"})
	}
	if err := s.deps.Calendar.HandleCallback(c.Context(), code); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	s.BroadcastStatus()
	c.Set("Content-Type", "text/html")
	return c.SendString(`<!DOCTYPE html>
<html>
<body>
    <p>Calendar connected. You can close this window.</p>
    <script>setTimeout(function() { window.close(); }, 2000);</script>
</body>
</html>`)
}

// handleCalendarDisconnect drops the calendar authorization.
func (s *Server) handleCalendarDisconnect(c *fiber.Ctx) error {
	if s.deps.Calendar == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "calendar not configured"})
	}
	if err := s.deps.Calendar.Disconnect(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	s.BroadcastStatus()
	return c.JSON(fiber.Map{"disconnected": true})
}
