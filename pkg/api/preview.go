// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/telekom/notification-mailer/pkg/preview"
	"github.com/telekom/notification-mailer/pkg/system"
)

// Headers set on HTML preview responses.
const (
	HeaderMailSubject = "X-Mail-Subject"
	HeaderMailTo      = "X-Mail-To"
)

type previewList struct {
	Kinds []string `json:"kinds"`
}

func (s *Server) listPreviews(c *gin.Context) {
	c.JSON(http.StatusOK, previewList{Kinds: s.kinds})
}

// getPreview renders the sample of :kind. The HTML body is returned unless
// format=json is requested.
func (s *Server) getPreview(c *gin.Context) {
	log := system.GetReqLogger(c, s.log)
	kind := c.Param("kind")

	msg, err := s.previewer.Render(c.Request.Context(), kind)
	if errors.Is(err, preview.ErrUnknownKind) {
		respondNotFound(c, "notification kind", kind)
		return
	}
	if err != nil {
		respondInternalError(c, "render preview", err, log)
		return
	}

	switch c.DefaultQuery("format", "html") {
	case "json":
		c.JSON(http.StatusOK, msg)
	case "html":
		c.Header(HeaderMailSubject, msg.Subject)
		c.Header(HeaderMailTo, msg.To)
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(msg.Body))
	default:
		respondBadRequest(c, "format must be html or json")
	}
}
