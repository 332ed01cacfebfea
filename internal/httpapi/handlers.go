package httpapi

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"affidamento/internal"
	"affidamento/internal/document"
	"affidamento/internal/logger"
	"affidamento/internal/pipeline"
	"affidamento/internal/reconcile"
	"affidamento/internal/storage"
)

const docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// multipartOverhead is the room left for form boundaries and headers on top
// of the file size limit.
const multipartOverhead = 1 << 20

type Handler struct {
	db     *storage.DB
	quotes *pipeline.QuoteService
	log    *logger.Logger
}

func NewHandler(db *storage.DB, quotes *pipeline.QuoteService, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{db: db, quotes: quotes, log: log}
}

func (h *Handler) fail(c *gin.Context, op string, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		h.log.Error(op+" failed", "error", err, "path", c.Request.URL.Path)
	} else {
		h.log.Warn(op+" rejected", "error", err, "code", code)
	}
	RespondError(c, status, code, err)
}

func (h *Handler) HealthCheck(c *gin.Context) {
	if err := h.db.Ping(c.Request.Context()); err != nil {
		RespondError(c, http.StatusServiceUnavailable, "db_unavailable", err)
		return
	}
	c.String(http.StatusOK, "ok")
}

// POST /api/preventivi/upload
func (h *Handler) UploadQuote(c *gin.Context) {
	limit := h.quotes.MaxUploadBytes()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(c, "upload", fmt.Errorf("%w: request over %d bytes", pipeline.ErrTooLarge, tooLarge.Limit))
			return
		}
		RespondError(c, http.StatusBadRequest, "missing_file", err)
		return
	}
	if header.Size > limit {
		h.fail(c, "upload", fmt.Errorf("%w: %s is %d bytes", pipeline.ErrTooLarge, header.Filename, header.Size))
		return
	}
	f, err := header.Open()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "unreadable_file", err)
		return
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "unreadable_file", err)
		return
	}

	q, err := h.quotes.Upload(c.Request.Context(), internal.SourceUpload, header.Filename, content)
	if err != nil {
		h.fail(c, "upload", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"quote": q})
}

// POST /api/preventivi/:id/parse
func (h *Handler) ParseQuote(c *gin.Context) {
	res, err := h.quotes.Parse(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "parse", err)
		return
	}
	RespondOK(c, res)
}

// GET /api/preventivi/:id
func (h *Handler) GetQuote(c *gin.Context) {
	q, err := h.quotes.Quote(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "get quote", err)
		return
	}

	payload := gin.H{"quote": q}
	if extracted, err := pipeline.DecodeExtracted(q); err == nil {
		payload["extracted"] = extracted
	}
	if q.SupplierJSON != nil {
		supplier, err := pipeline.DecodeSupplier(q)
		if err != nil {
			h.fail(c, "get quote", err)
			return
		}
		payload["supplier"] = supplier
	}
	session, err := pipeline.DecodeSession(q)
	if err != nil {
		h.fail(c, "get quote", err)
		return
	}
	if session != nil {
		payload["session"] = session
	}
	RespondOK(c, payload)
}

type resolveRequest struct {
	Choices      map[string]string `json:"choices"`
	PersistNovel *bool             `json:"persistNovel"`
}

// POST /api/preventivi/:id/resolve
func (h *Handler) ResolveQuote(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	choices := make(map[internal.Field]reconcile.Side, len(req.Choices))
	for name, value := range req.Choices {
		side, ok := reconcile.ParseSide(value)
		if !ok {
			RespondError(c, http.StatusBadRequest, "invalid_choice", fmt.Errorf("field %s: unknown side %q", name, value))
			return
		}
		choices[internal.Field(strings.TrimSpace(name))] = side
	}
	persistNovel := true
	if req.PersistNovel != nil {
		persistNovel = *req.PersistNovel
	}

	res, err := h.quotes.Resolve(c.Request.Context(), c.Param("id"), choices, persistNovel)
	if err != nil {
		h.fail(c, "resolve", err)
		return
	}
	RespondOK(c, res)
}

// POST /api/preventivi/:id/cancel
func (h *Handler) CancelQuote(c *gin.Context) {
	res, err := h.quotes.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "cancel", err)
		return
	}
	RespondOK(c, res)
}

// GET /api/fornitori
func (h *Handler) ListSuppliers(c *gin.Context) {
	records, err := h.db.ListSuppliers(c.Request.Context())
	if err != nil {
		h.fail(c, "list suppliers", err)
		return
	}
	if records == nil {
		records = []internal.SupplierRecord{}
	}
	RespondOK(c, gin.H{"fornitori": records})
}

// PATCH /api/fornitori/:id
func (h *Handler) PatchSupplier(c *gin.Context) {
	var body map[string]*string
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	patch := internal.SupplierFields{}
	for name, value := range body {
		field, ok := internal.ParseField(name)
		if !ok {
			RespondError(c, http.StatusBadRequest, "unknown_field", fmt.Errorf("unknown field %q", name))
			return
		}
		if value != nil {
			v := strings.TrimSpace(*value)
			patch.Set(field, &v)
		}
	}
	if patch.Value(internal.FieldLegalName) == "" && patch.LegalName != nil {
		RespondError(c, http.StatusBadRequest, "invalid_field", errors.New("legalName cannot be empty"))
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")
	if err := h.db.UpdateSupplier(ctx, id, patch); err != nil {
		h.fail(c, "patch supplier", err)
		return
	}
	rec, err := h.db.FindSupplier(ctx, id)
	if err != nil {
		h.fail(c, "patch supplier", err)
		return
	}
	RespondOK(c, gin.H{"fornitore": rec})
}

// POST /api/affidamenti/:id/generate
func (h *Handler) GenerateAward(c *gin.Context) {
	var form document.Form
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&form); err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_body", err)
			return
		}
	}

	id := c.Param("id")
	var out bytes.Buffer
	if err := h.quotes.Generate(c.Request.Context(), id, form, &out); err != nil {
		h.fail(c, "generate", err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="affidamento_%s.docx"`, id))
	c.Data(http.StatusOK, docxContentType, out.Bytes())
}
