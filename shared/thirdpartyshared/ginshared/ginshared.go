package ginshared

import (
	"net/http"

	"github.com/fxamacker/cbor/v2"
	"github.com/gin-gonic/gin"
)

const ContentTypeCbor = "application/cbor"

type Render interface {
}

type statusOnlyRender struct {
	Status int
}

func RenderStatus(status int) Render {
	return statusOnlyRender{Status: status}
}

type stringRender struct {
	Status int
	String string
}

func RenderOKString(str string) Render {
	return &stringRender{
		Status: http.StatusOK,
		String: str,
	}
}

func RenderString(status int, str string) Render {
	return &stringRender{
		Status: status,
		String: str,
	}
}

type errorRender struct {
	Err error
}

func RenderError(err error) Render {
	return errorRender{Err: err}
}

type jsonRender struct {
	HttpStatus int
	Object     interface{}
}

func RenderJson(status int, object interface{}) Render {
	return jsonRender{
		HttpStatus: status,
		Object:     object,
	}
}

type cborRender struct {
	Status int
	Object interface{}
}

func RenderCbor(status int, object interface{}) Render {
	return cborRender{
		Status: status,
		Object: object,
	}
}

type DefaultHandler func(ctx *gin.Context) Render

func Wrap(f DefaultHandler) func(ctx *gin.Context) {
	return func(ctx *gin.Context) {
		render := f(ctx)
		switch r := render.(type) {
		case errorRender:
			_ = ctx.Error(r.Err)
		case statusOnlyRender:
			ctx.Status(r.Status)
		case *stringRender:
			ctx.String(r.Status, r.String)
		case jsonRender:
			ctx.JSON(r.HttpStatus, r.Object)
		case cborRender:
			data, err := cbor.Marshal(r.Object)
			if err != nil {
				_ = ctx.Error(err)
				return
			}
			ctx.Data(r.Status, ContentTypeCbor, data)
		default:
			ctx.Status(http.StatusInternalServerError)
		}
	}
}

// BindCbor decodes the request body as CBOR into obj.
func BindCbor(ctx *gin.Context, obj interface{}) error {
	data, err := ctx.GetRawData()
	if err != nil {
		return err
	}
	return cbor.Unmarshal(data, obj)
}
