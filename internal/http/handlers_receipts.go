package http

import (
	"errors"
	"html/template"
	"net/http"
	"os"
	"strings"

	"treasury/internal/log"
	"treasury/internal/receipts"
)

// FieldReceiptFile is the multipart field carrying the upload.
const FieldReceiptFile = "receipt"

// receiptOpener is implemented by stores that can serve their own files.
type receiptOpener interface {
	Open(key string) (*os.File, error)
}

func (s *Server) handleUploadReceipt(w http.ResponseWriter, r *http.Request) {
	if s.receipts == nil {
		NotFoundError("Receipt uploads are not configured").Write(w)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, receipts.MaxSize+(1<<20))
	file, header, err := r.FormFile(FieldReceiptFile)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			ErrorResponse(http.StatusRequestEntityTooLarge, receipts.ErrTooLarge.Error()).Write(w)
			return
		}
		BadRequestError("Choose a receipt file to upload").Write(w)
		return
	}
	defer file.Close()

	logger := log.FromContext(r.Context()).WithComponent(log.ComponentReceipts)
	url, err := receipts.Save(r.Context(), s.receipts, file, header.Filename)
	if err != nil {
		switch {
		case errors.Is(err, receipts.ErrTooLarge):
			ErrorResponse(http.StatusRequestEntityTooLarge, err.Error()).Write(w)
		case errors.Is(err, receipts.ErrEmpty), errors.Is(err, receipts.ErrUnsupported):
			UnprocessableEntityError(err.Error()).Write(w)
		default:
			logger.ErrorContext(r.Context(), "Failed to store receipt",
				log.FieldError, err,
				log.FieldOperation, log.OpUpload,
				"filename", header.Filename)
			InternalServerError("Could not store the receipt").Write(w)
		}
		return
	}

	logger.InfoContext(r.Context(), "Receipt stored",
		log.FieldOperation, log.OpUpload,
		"url", url,
		"size", header.Size)

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		writeJSON(w, http.StatusCreated, map[string]string{"url": url})
		return
	}
	escaped := template.HTMLEscapeString(url)
	NewHTMXResponse().
		Status(http.StatusCreated).
		TriggerReceiptUploaded(url).
		TriggerSuccessNotification("Receipt uploaded").
		BodyHTML(`<a class="receipt-link" href="` + escaped + `" target="_blank" rel="noopener">` + escaped + `</a>`).
		Write(w)
}

func (s *Server) handleReceipt(w http.ResponseWriter, r *http.Request) {
	opener, ok := s.receipts.(receiptOpener)
	if !ok {
		http.NotFound(w, r)
		return
	}
	f, err := opener.Open(r.PathValue("key"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Disposition", "inline")
	w.Header().Set("Cache-Control", "private, max-age=86400")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
