package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"parley.app/server/internal/catalog"
	"parley.app/server/internal/http/handler"
)

var _ = Describe("ModelsHandler", func() {
	var (
		router *gin.Engine
		svc    *mockModelService
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		svc = &mockModelService{}
		h := handler.NewModelsHandler(svc)
		router.GET("/models", h.List)
	})

	It("returns the catalog", func() {
		svc.listModelsFn = func(_ context.Context) []catalog.ModelDescriptor {
			return []catalog.ModelDescriptor{
				{ModelID: "gpt-4o", ProviderID: "openai", Capabilities: []string{"text", "chat", "multimodal"}, Available: true},
				{ModelID: "claude-sonnet-4-5", ProviderID: "anthropic", Capabilities: []string{"text", "chat", "multimodal"}, Available: true},
			}
		}

		req := httptest.NewRequest(http.MethodGet, "/models", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		var resp struct {
			Models []map[string]any `json:"models"`
		}
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Models).To(HaveLen(2))
		Expect(resp.Models[0]["model_id"]).To(Equal("gpt-4o"))
	})

	It("returns an empty list when nothing is configured", func() {
		req := httptest.NewRequest(http.MethodGet, "/models", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
	})
})
