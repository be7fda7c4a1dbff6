package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/support-desk/internal/errs"
	"github.com/psds-microservice/support-desk/internal/model"
	"github.com/psds-microservice/support-desk/internal/service"
	"github.com/psds-microservice/support-desk/internal/validation"
)

// SubmitHandler — публичная форма нового тикета.
type SubmitHandler struct {
	tickets   service.TicketServicer
	maxUpload int64
}

func NewSubmitHandler(tickets service.TicketServicer, maxUpload int64) *SubmitHandler {
	return &SubmitHandler{tickets: tickets, maxUpload: maxUpload}
}

func (h *SubmitHandler) Form(c *gin.Context) {
	render(c, http.StatusOK, "submit", gin.H{"error_types": model.ErrorTypeChoices})
}

func (h *SubmitHandler) Submit(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+1<<20)

	var in service.TicketInput
	if err := c.ShouldBind(&in); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.invalid(c, http.StatusRequestEntityTooLarge, in, errs.NewValidationError("file", "File is too large."))
			return
		}
		if verr, ok := errs.IsValidation(validation.Translate(err, service.TicketFieldNames)); ok {
			h.invalid(c, http.StatusBadRequest, in, verr)
			return
		}
		h.invalid(c, http.StatusBadRequest, in, errs.NewValidationError("form", "The form could not be read."))
		return
	}

	att, verr := h.attachment(c)
	if verr != nil {
		h.invalid(c, http.StatusBadRequest, in, verr)
		return
	}

	res, err := h.tickets.Create(c.Request.Context(), in, att)
	if err != nil {
		if verr, ok := errs.IsValidation(err); ok {
			h.invalid(c, http.StatusBadRequest, in, verr)
			return
		}
		slog.Error("submit: create ticket", "error", err)
		flash(c, genericFailure)
		render(c, http.StatusInternalServerError, "submit", gin.H{"error_types": model.ErrorTypeChoices, "form": in})
		return
	}
	if res.UploadErr != nil {
		flash(c, "File upload error: your ticket was saved without the attachment.")
	}
	flash(c, fmt.Sprintf("Ticket %s submitted successfully.", res.Ticket.TicketID))
	redirect(c, "/")
}

// attachment reads the optional "file" field. A missing file is not an error.
func (h *SubmitHandler) attachment(c *gin.Context) (*service.Attachment, *errs.ValidationError) {
	fh, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, errs.NewValidationError("file", "The file could not be read.")
	}
	if fh.Filename == "" || fh.Size == 0 {
		return nil, nil
	}
	if fh.Size > h.maxUpload {
		return nil, errs.NewValidationError("file", "File is too large.")
	}
	data, err := readUpload(fh, h.maxUpload)
	if err != nil {
		return nil, errs.NewValidationError("file", "The file could not be read.")
	}
	return &service.Attachment{Filename: fh.Filename, Data: data}, nil
}

func readUpload(fh *multipart.FileHeader, limit int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, limit))
}

func (h *SubmitHandler) invalid(c *gin.Context, status int, in service.TicketInput, verr *errs.ValidationError) {
	render(c, status, "submit", gin.H{
		"error_types": model.ErrorTypeChoices,
		"form":        in,
		"errors":      verr.Fields,
	})
}
