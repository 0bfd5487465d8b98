package ginshared

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/gin-gonic/gin"
)

type payload struct {
	Name string `cbor:"name"`
}

func TestWrapRenders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := NewEngine()
	engine.GET("/error", Wrap(func(ctx *gin.Context) Render {
		return RenderError(errors.New("broken"))
	}))
	engine.POST("/echo", Wrap(func(ctx *gin.Context) Render {
		p := new(payload)
		if err := BindCbor(ctx, p); err != nil {
			return RenderString(http.StatusBadRequest, err.Error())
		}
		return RenderCbor(http.StatusOK, p)
	}))

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/error", nil))
	if w.Code != http.StatusInternalServerError || w.Body.String() != "broken" {
		t.Fatal("unexpected error rendering:", w.Code, w.Body.String())
	}

	body, _ := cbor.Marshal(&payload{Name: "Org1MSP"})
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", bytes.NewReader(body)))
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != ContentTypeCbor {
		t.Fatal("unexpected cbor rendering:", w.Code, w.Header())
	}
	out := new(payload)
	if err := cbor.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatal(err)
	}
	if out.Name != "Org1MSP" {
		t.Fatal("unexpected payload:", out.Name)
	}
}
