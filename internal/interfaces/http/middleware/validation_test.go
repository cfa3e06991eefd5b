package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reserveBody struct {
	UserID    string `json:"userId" binding:"required,uuid"`
	QuotaType string `json:"quotaType" binding:"required"`
	Amount    int64  `json:"amount" binding:"omitempty,gte=1"`
}

func validatedEngine() *gin.Engine {
	SetupValidator()
	engine := gin.New()
	engine.POST("/api/v1/internal/quota/reserve", func(c *gin.Context) {
		var body reserveBody
		if err := c.ShouldBindJSON(&body); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
	return engine
}

func postJSON(engine *gin.Engine, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(w, req)
	return w
}

func TestSetupValidator(t *testing.T) {
	SetupValidator()
	_, ok := binding.Validator.Engine().(*validator.Validate)
	assert.True(t, ok)
}

func TestHandleValidationError(t *testing.T) {
	engine := validatedEngine()

	t.Run("reports each offending field by its JSON name", func(t *testing.T) {
		w := postJSON(engine, "/api/v1/internal/quota/reserve",
			`{"userId": "not-a-uuid", "amount": 0}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var resp struct {
			Success bool `json:"success"`
			Error   struct {
				Code    string `json:"code"`
				Message string `json:"message"`
				Details []struct {
					Field   string `json:"field"`
					Message string `json:"message"`
				} `json:"details"`
			} `json:"error"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

		assert.False(t, resp.Success)
		assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
		require.Len(t, resp.Error.Details, 3)

		fields := map[string]string{}
		for _, d := range resp.Error.Details {
			fields[d.Field] = d.Message
		}
		assert.Equal(t, "Invalid UUID format", fields["userId"])
		assert.Equal(t, "This field is required", fields["quotaType"])
		assert.Contains(t, fields["amount"], "greater than or equal to 1")
	})

	t.Run("valid payload passes through", func(t *testing.T) {
		w := postJSON(engine, "/api/v1/internal/quota/reserve",
			`{"userId": "f3b4e7a0-0000-4000-8000-000000000001", "quotaType": "max_messages_per_day", "amount": 2}`)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestFieldMessage(t *testing.T) {
	type sampleInput struct {
		Name   string `validate:"required"`
		Email  string `validate:"email"`
		Code   string `validate:"min=5"`
		Tag    string `validate:"max=3"`
		Choice string `validate:"oneof=grant deny"`
	}

	v := validator.New()
	err := v.Struct(sampleInput{Email: "nope", Code: "ab", Tag: "long", Choice: "maybe"})
	require.Error(t, err)

	messages := map[string]string{}
	for _, e := range err.(validator.ValidationErrors) {
		messages[e.StructField()] = fieldMessage(e)
	}

	assert.Equal(t, "This field is required", messages["Name"])
	assert.Equal(t, "Invalid email format", messages["Email"])
	assert.Equal(t, "Must be at least 5 characters", messages["Code"])
	assert.Equal(t, "Must be at most 3 characters", messages["Tag"])
	assert.Equal(t, "Must be one of: grant deny", messages["Choice"])
}
