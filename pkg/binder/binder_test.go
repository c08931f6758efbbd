package binder

import (
	"bytes"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type params struct {
	Folder string `json:"folder" mod:"trim" validate:"max=9"`
	Omit   string `json:"-"`
}

type uploadParams struct {
	Folder    string `form:"folder"`
	FormFiles map[string]*multipart.FileHeader
}

var (
	goodJSON             = `{"folder":" covers "}`
	unknownFieldsErrJSON = `{"folder":"covers","foo":"bar"}`
	typeErrJSON          = `{"folder":123}`
	validationErrJSON    = `{"folder":"0123456789"}`
)

func TestNew(t *testing.T) {
	t.Parallel()
	b, err := New()
	require.NoError(t, err)
	assert.NotNil(t, b)

	t.Run("only allows json, form, and multipart bodies", func(tt *testing.T) {
		c := newContext(goodJSON, echo.MIMEApplicationXML)
		p := params{}
		err = b.Bind(&p, c)
		assert.Contains(tt, err.Error(), "Unsupported Media Type")
	})

	t.Run("disallows unknown fields", func(tt *testing.T) {
		c := newContext(unknownFieldsErrJSON, echo.MIMEApplicationJSON)
		p := params{}
		err = b.Bind(&p, c)
		assert.Contains(tt, err.Error(), `Unknown Parameter "foo"`)
	})

	t.Run("returns a good message for type errors", func(tt *testing.T) {
		c := newContext(typeErrJSON, echo.MIMEApplicationJSON)
		p := params{}
		err = b.Bind(&p, c)
		assert.Contains(tt, err.Error(), `"folder" should be of type string`)
	})

	t.Run("use mod tag to modify params", func(tt *testing.T) {
		c := newContext(goodJSON, echo.MIMEApplicationJSON)
		p := params{}
		err = b.Bind(&p, c)
		require.NoError(tt, err)
		assert.Equal(tt, "covers", p.Folder)
	})

	t.Run("use validate tag to validate params", func(tt *testing.T) {
		c := newContext(validationErrJSON, echo.MIMEApplicationJSON)
		p := params{}
		err = b.Bind(&p, c)
		assert.Contains(tt, err.Error(), "length must be less than or equal to 9 characters")
	})

	t.Run("binds multipart form fields and files", func(tt *testing.T) {
		body := &bytes.Buffer{}
		w := multipart.NewWriter(body)
		require.NoError(tt, w.WriteField("folder", "covers"))
		fw, err := w.CreateFormFile("file", "cover.png")
		require.NoError(tt, err)
		_, err = fw.Write([]byte("not a real png"))
		require.NoError(tt, err)
		require.NoError(tt, w.Close())

		e := echo.New()
		req := httptest.NewRequest(echo.POST, "/", body)
		req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
		c := e.NewContext(req, httptest.NewRecorder())

		p := uploadParams{}
		require.NoError(tt, b.Bind(&p, c))
		assert.Equal(tt, "covers", p.Folder)
		require.Contains(tt, p.FormFiles, "file")
		assert.Equal(tt, "cover.png", p.FormFiles["file"].Filename)
	})
}

func newContext(payload, mime string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(echo.POST, "/", strings.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, mime)
	rr := httptest.NewRecorder()
	return e.NewContext(req, rr)
}
