package api

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"membership/internal/auth"
	"membership/internal/card"
	"membership/internal/qrstyle"
	"membership/internal/scan"
	"membership/internal/student"
)

const maxScanUpload = 8 << 20

func publicList(in []student.Student) []student.Public {
	out := make([]student.Public, 0, len(in))
	for _, s := range in {
		out = append(out, s.Public())
	}
	return out
}

func (h *Handler) getMe(c *gin.Context) {
	p, _ := auth.FromContext(c)
	c.JSON(http.StatusOK, p.Student.Public())
}

func (h *Handler) updateMe(c *gin.Context) {
	var u student.Update
	if err := c.ShouldBindJSON(&u); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, _ := auth.FromContext(c)
	st, err := h.Students.UpdateProfile(c.Request.Context(), p.Student.ID, u)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st.Public())
}

func (h *Handler) myQRCode(c *gin.Context) {
	p, _ := auth.FromContext(c)
	h.writeQRCode(c, *p.Student)
}

func (h *Handler) studentQRCode(c *gin.Context) {
	st, ok := h.loadStudent(c)
	if !ok {
		return
	}
	h.writeQRCode(c, st)
}

func (h *Handler) writeQRCode(c *gin.Context, st student.Student) {
	png, err := qrstyle.ComposePNG(st.UniqueID, h.Logo, h.QRSpec)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"student_id":   st.ID,
		"student_name": st.Name,
		"qr_code":      "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
	})
}

func (h *Handler) listStudents(c *gin.Context) {
	limit, offset := 50, 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	list, err := h.Students.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": publicList(list)})
}

// loadStudent resolves the :id parameter. Malformed ids are reported as not
// found.
func (h *Handler) loadStudent(c *gin.Context) (student.Student, bool) {
	id, ok := h.studentID(c)
	if !ok {
		return student.Student{}, false
	}
	st, err := h.Students.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return student.Student{}, false
	}
	return st, true
}

func (h *Handler) studentID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.fail(c, student.ErrNotFound)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) getStudent(c *gin.Context) {
	st, ok := h.loadStudent(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, st.Public())
}

func (h *Handler) updateStudent(c *gin.Context) {
	id, ok := h.studentID(c)
	if !ok {
		return
	}
	var u student.Update
	if err := c.ShouldBindJSON(&u); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	st, err := h.Students.AdminUpdate(c.Request.Context(), id, u)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Student details updated successfully", "student": st.Public()})
}

func (h *Handler) deleteStudent(c *gin.Context) {
	id, ok := h.studentID(c)
	if !ok {
		return
	}
	if err := h.Students.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Student removed successfully"})
}

func (h *Handler) sendIDCard(c *gin.Context) {
	id, ok := h.studentID(c)
	if !ok {
		return
	}
	p, _ := auth.FromContext(c)
	if err := h.Students.RequestCard(c.Request.Context(), id, p.Email()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "ID card delivery queued"})
}

func (h *Handler) verify(c *gin.Context) {
	var req struct {
		UniqueID string `json:"unique_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Metrics.ObserveVerification("invalid")
		c.JSON(http.StatusBadRequest, gin.H{"error": "unique_id is required"})
		return
	}
	h.verified(c, req.UniqueID)
}

func (h *Handler) verifyScan(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxScanUpload)
	file, _, err := c.Request.FormFile("image")
	if err != nil {
		h.Metrics.ObserveVerification("invalid")
		c.JSON(http.StatusBadRequest, gin.H{"error": "image field required"})
		return
	}
	defer file.Close()

	img, err := scan.ReadImage(file)
	if err != nil {
		h.Metrics.ObserveVerification("invalid")
		h.fail(c, err)
		return
	}
	uniqueID, err := card.ScanPayload(img)
	if err != nil {
		h.Metrics.ObserveVerification("no_code")
		h.fail(c, err)
		return
	}
	h.verified(c, uniqueID)
}

func (h *Handler) verified(c *gin.Context, uniqueID string) {
	st, err := h.Students.Verify(c.Request.Context(), uniqueID)
	switch {
	case errors.Is(err, student.ErrNotFound):
		h.Metrics.ObserveVerification("not_found")
		c.JSON(http.StatusNotFound, gin.H{"error": "verification failed: no student found with this id"})
		return
	case errors.Is(err, student.ErrValidation):
		h.Metrics.ObserveVerification("invalid")
	case err == nil:
		h.Metrics.ObserveVerification("found")
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Verification successful", "student": st.Public()})
}
